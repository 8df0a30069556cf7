package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/susu3304/warikan/internal/expense"
	"github.com/susu3304/warikan/internal/optimizer"
	"github.com/susu3304/warikan/internal/warikan"
)

type namesRequest struct {
	Names []string `json:"names"`
}

type weightsRequest struct {
	Changes []weightJSON `json:"changes"`
}

type expenseRequest struct {
	Owner        string       `json:"owner"`
	Creditor     string       `json:"creditor"`
	Amount       float64      `json:"amount"`
	Note         string       `json:"note"`
	Participants []string     `json:"participants"`
	Weights      []weightJSON `json:"weights"`
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := a.warikan.StartSession(groupID(r)); err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "session started"})
}

func (a *API) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := a.warikan.StopSession(groupID(r)); err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "session stopped"})
}

func (a *API) handleListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := a.warikan.Members(groupID(r))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"members": members})
}

func (a *API) handleAddMembers(w http.ResponseWriter, r *http.Request) {
	var req namesRequest
	if !decode(w, r, &req) {
		return
	}
	added, err := a.warikan.AddMembers(groupID(r), req.Names...)
	if err != nil {
		a.writeError(w, err)
		return
	}
	if added == nil {
		added = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"added": added})
}

func (a *API) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	if err := a.warikan.RemoveMembers(groupID(r), mux.Vars(r)["name"]); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleListDrafts(w http.ResponseWriter, r *http.Request) {
	drafts, err := a.warikan.Drafts(groupID(r), r.URL.Query().Get("owner"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, expensesJSON(drafts))
}

func (a *API) handleOpenDraft(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if !decode(w, r, &req) {
		return
	}
	v, err := a.warikan.OpenDraft(groupID(r), req.Owner, req.Creditor, req.Amount, req.Note, req.Participants)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, expenseJSONOf(v))
}

func (a *API) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	a.respondExpense(w)(a.warikan.Draft(groupID(r), draftID(r)))
}

// handlePatchDraft updates the note and/or the amount.
func (a *API) handlePatchDraft(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Note   *string  `json:"note"`
		Amount *float64 `json:"amount"`
	}
	if !decode(w, r, &req) {
		return
	}
	gid, did := groupID(r), draftID(r)
	if req.Amount != nil {
		if _, err := a.warikan.DraftSetAmount(gid, did, *req.Amount); err != nil {
			a.writeError(w, err)
			return
		}
	}
	if req.Note != nil {
		if _, err := a.warikan.DraftSetNote(gid, did, *req.Note); err != nil {
			a.writeError(w, err)
			return
		}
	}
	a.respondExpense(w)(a.warikan.Draft(gid, did))
}

func (a *API) handleDiscardDraft(w http.ResponseWriter, r *http.Request) {
	if err := a.warikan.DiscardDraft(groupID(r), draftID(r)); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleDraftAddParticipants(w http.ResponseWriter, r *http.Request) {
	var req namesRequest
	if !decode(w, r, &req) {
		return
	}
	skipped, v, err := a.warikan.DraftAddParticipants(groupID(r), draftID(r), req.Names...)
	a.respondSkipped(w, skipped, v, err)
}

func (a *API) handleDraftRemoveParticipants(w http.ResponseWriter, r *http.Request) {
	var req namesRequest
	if !decode(w, r, &req) {
		return
	}
	skipped, v, err := a.warikan.DraftRemoveParticipants(groupID(r), draftID(r), req.Names...)
	a.respondSkipped(w, skipped, v, err)
}

func (a *API) handleDraftWeights(w http.ResponseWriter, r *http.Request) {
	var req weightsRequest
	if !decode(w, r, &req) {
		return
	}
	a.respondExpense(w)(a.warikan.DraftChangeWeights(groupID(r), draftID(r), changesOf(req.Changes)...))
}

func (a *API) handleDraftRollBack(w http.ResponseWriter, r *http.Request) {
	a.respondExpense(w)(a.warikan.DraftRollBack(groupID(r), draftID(r)))
}

func (a *API) handleCommitDraft(w http.ResponseWriter, r *http.Request) {
	v, err := a.warikan.CommitDraft(groupID(r), draftID(r))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, expenseJSONOf(v))
}

func (a *API) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	list, err := a.warikan.Expenses(groupID(r))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, expensesJSON(list))
}

func (a *API) handleAddExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if !decode(w, r, &req) {
		return
	}
	v, err := a.warikan.AddExpense(groupID(r), req.Creditor, req.Amount, req.Note, req.Participants, changesOf(req.Weights))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, expenseJSONOf(v))
}

func (a *API) handleUndoExpense(w http.ResponseWriter, r *http.Request) {
	a.respondExpense(w)(a.warikan.UndoExpense(groupID(r)))
}

func (a *API) handleRemoveExpense(w http.ResponseWriter, r *http.Request) {
	a.respondExpense(w)(a.warikan.RemoveExpense(groupID(r), expenseID(r)))
}

func (a *API) handleExpenseWeights(w http.ResponseWriter, r *http.Request) {
	var req weightsRequest
	if !decode(w, r, &req) {
		return
	}
	a.respondExpense(w)(a.warikan.ReweightExpense(groupID(r), expenseID(r), changesOf(req.Changes)...))
}

func (a *API) handleExpenseRollBack(w http.ResponseWriter, r *http.Request) {
	a.respondExpense(w)(a.warikan.RollBackExpense(groupID(r), expenseID(r)))
}

func (a *API) handleBalances(w http.ResponseWriter, r *http.Request) {
	edges, err := a.warikan.Balances(groupID(r))
	if err != nil {
		a.writeError(w, err)
		return
	}
	out := make([]debtJSON, len(edges))
	for i, d := range edges {
		out[i] = debtJSON{Debtor: d.Debtor, Creditor: d.Creditor, Amount: d.Amount}
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Strategy string `json:"strategy"`
	}
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	strategy := a.warikan.DefaultStrategy()
	if req.Strategy != "" {
		st, err := optimizer.ParseStrategy(req.Strategy)
		if err != nil {
			a.writeError(w, err)
			return
		}
		strategy = st
	}
	plan, err := a.warikan.Optimize(groupID(r), strategy)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, planJSONOf(plan))
}

func (a *API) handleSummary(w http.ResponseWriter, r *http.Request) {
	st, err := a.warikan.Statement(groupID(r), mux.Vars(r)["name"])
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryJSONOf(st))
}

func (a *API) handleTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := a.warikan.PendingTasks(groupID(r))
	if err != nil {
		a.writeError(w, err)
		return
	}
	out := make([]taskJSON, len(tasks))
	for i, t := range tasks {
		out[i] = taskJSONOf(t)
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Actor string `json:"actor"`
		Other string `json:"other"`
	}
	if !decode(w, r, &req) {
		return
	}
	t, err := a.warikan.CompleteTransfer(groupID(r), req.Actor, req.Other)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, taskJSONOf(t))
}

func (a *API) respondExpense(w http.ResponseWriter) func(warikan.ExpenseView, error) {
	return func(v warikan.ExpenseView, err error) {
		if err != nil {
			a.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, expenseJSONOf(v))
	}
}

func (a *API) respondSkipped(w http.ResponseWriter, skipped []string, v warikan.ExpenseView, err error) {
	if err != nil {
		a.writeError(w, err)
		return
	}
	if skipped == nil {
		skipped = []string{}
	}
	writeJSON(w, http.StatusOK, struct {
		Skipped []string    `json:"skipped"`
		Draft   expenseJSON `json:"draft"`
	}{skipped, expenseJSONOf(v)})
}

func groupID(r *http.Request) string   { return mux.Vars(r)["group_id"] }
func draftID(r *http.Request) string   { return mux.Vars(r)["draft_id"] }
func expenseID(r *http.Request) string { return mux.Vars(r)["expense_id"] }

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "invalid request body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusOf maps service errors to HTTP statuses.
func statusOf(err error) int {
	switch {
	case errors.Is(err, warikan.ErrNoSession),
		errors.Is(err, warikan.ErrNoDraft),
		errors.Is(err, warikan.ErrUnknownExpense),
		errors.Is(err, warikan.ErrNoTask),
		errors.Is(err, optimizer.ErrNameNotFound):
		return http.StatusNotFound
	case errors.Is(err, warikan.ErrMemberInUse),
		errors.Is(err, optimizer.ErrOutOfTime),
		errors.Is(err, optimizer.ErrNoResult),
		errors.Is(err, expense.ErrNoHistory):
		return http.StatusConflict
	case errors.Is(err, warikan.ErrUnknownMember),
		errors.Is(err, warikan.ErrEmptyName),
		errors.Is(err, warikan.ErrNoExpenses),
		errors.Is(err, warikan.ErrTooFewMembers),
		errors.Is(err, expense.ErrInvalidID),
		errors.Is(err, expense.ErrNegativeAmount),
		errors.Is(err, expense.ErrEmptyCreditor),
		errors.Is(err, expense.ErrWeightOutOfRange),
		errors.Is(err, expense.ErrUnknownParticipant),
		errors.Is(err, expense.ErrLastParticipant),
		errors.Is(err, optimizer.ErrUnknownStrategy):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (a *API) writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		a.logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, errorJSON{Error: err.Error()})
}
