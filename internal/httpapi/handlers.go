package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"kasirledger/backend/internal/domain"
)

func (a *API) handleFinalizeSale(w http.ResponseWriter, r *http.Request) {
	var req domain.FinalizeSaleRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid_json", err)
		return
	}
	resp, err := a.service.FinalizeSale(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handleGetSale(w http.ResponseWriter, r *http.Request) {
	sale, err := a.service.GetSale(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sale)
}

func (a *API) handleRecordPurchase(w http.ResponseWriter, r *http.Request) {
	var req domain.RecordPurchaseRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid_json", err)
		return
	}
	resp, err := a.service.RecordPurchase(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handleGetPurchase(w http.ResponseWriter, r *http.Request) {
	purchase, err := a.service.GetPurchase(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, purchase)
}

func (a *API) handleReturnableItems(w http.ResponseWriter, r *http.Request) {
	kind := domain.ReturnKind(chi.URLParam(r, "kind"))
	items, err := a.service.ListReturnableItems(r.Context(), kind, chi.URLParam(r, "sourceID"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	if items == nil {
		items = []domain.SourceItem{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) handleCreateReturn(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateReturnRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid_json", err)
		return
	}
	doc, err := a.service.CreateReturnDraft(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (a *API) handleGetReturn(w http.ResponseWriter, r *http.Request) {
	doc, err := a.service.GetReturn(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (a *API) handleDeleteReturn(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteReturn(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleAddReturnItem(w http.ResponseWriter, r *http.Request) {
	var req domain.AddReturnItemRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid_json", err)
		return
	}
	item, err := a.service.AddReturnItem(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (a *API) handleSetReturnStatus(w http.ResponseWriter, r *http.Request) {
	var req domain.SetStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid_json", err)
		return
	}
	doc, err := a.service.SetReturnStatus(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (a *API) handleUpdateReturnItem(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateReturnItemRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid_json", err)
		return
	}
	item, err := a.service.UpdateReturnItemQty(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (a *API) handleRemoveReturnItem(w http.ResponseWriter, r *http.Request) {
	if err := a.service.RemoveReturnItem(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleCreateOpname(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateOpnameRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid_json", err)
		return
	}
	session, err := a.service.CreateOpnameSession(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (a *API) handleGetOpname(w http.ResponseWriter, r *http.Request) {
	session, err := a.service.GetOpnameSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (a *API) handleDeleteOpname(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteOpnameSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleOpnameAggregates(w http.ResponseWriter, r *http.Request) {
	agg, err := a.service.OpnameAggregates(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

func (a *API) handleAddOpnameItem(w http.ResponseWriter, r *http.Request) {
	var req domain.AddOpnameItemRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid_json", err)
		return
	}
	item, err := a.service.AddOpnameItem(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (a *API) handleSetOpnameStatus(w http.ResponseWriter, r *http.Request) {
	var req domain.SetStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid_json", err)
		return
	}
	session, err := a.service.SetOpnameStatus(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (a *API) handleUpdateOpnameItem(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateOpnameItemRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid_json", err)
		return
	}
	item, err := a.service.UpdateOpnameItem(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (a *API) handleDeleteOpnameItem(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteOpnameItem(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)
	logs, err := a.service.ListAuditLogs(r.Context(), r.URL.Query().Get("date"), limit)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	if logs == nil {
		logs = []domain.AuditLog{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}
