package cooking

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"

	"pantree/db"
	"pantree/dto"
	"pantree/mq"
	"pantree/utils"
)

const (
	MsgBadID        = "The provided ID is not a valid GUID."
	MsgNotFound     = "An entity with the provided ID does not exist."
	MsgInUse        = "The entity could not be deleted, possibly due to database constraints."
	MsgBadBody      = "The request body could not be parsed as JSON."
	maxBodyBytes    = 1 << 20
	storageDeadline = 5 * time.Second
)

func storageContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), storageDeadline)
}

// collection serves the shared CRUD routes for one entity kind. M is the
// domain model and D the pointer payload type.
type collection[M any, D dto.Identifiable] struct {
	newDTO  func() D
	toDTO   func(*M) D
	fromDTO func(D) (*M, error)
	idOf    func(*M) uuid.UUID
	nameOf  func(*M) string

	list   func(context.Context) ([]*M, error)
	get    func(context.Context, uuid.UUID) (*M, error)
	save   func(context.Context, *M) error
	remove func(context.Context, uuid.UUID) error

	events                    mq.Emitter
	created, updated, deleted string
}

func (c *collection[M, D]) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := storageContext(r)
	defer cancel()

	all, err := c.list(ctx)
	if err != nil {
		utils.RespondInternal(w, r, err)
		return
	}
	opts := utils.ParseQueryOptions(r)
	out := make([]D, 0, len(all))
	for _, m := range all {
		if opts.Search != "" && !utils.ContainsIgnoreCase(c.nameOf(m), opts.Search) {
			continue
		}
		out = append(out, c.toDTO(m))
	}
	utils.RespondWithJSON(w, http.StatusOK, out)
}

func (c *collection[M, D]) GetSingle(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, ok := utils.ParseID(ps.ByName("id"))
	if !ok {
		utils.RespondWithError(w, http.StatusBadRequest, MsgBadID)
		return
	}
	ctx, cancel := storageContext(r)
	defer cancel()

	m, err := c.get(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		utils.RespondWithError(w, http.StatusNotFound, MsgNotFound)
		return
	}
	if err != nil {
		utils.RespondInternal(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, c.toDTO(m))
}

// Add creates the entity, or edits it in place when the payload carries the
// id of an existing one.
func (c *collection[M, D]) Add(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	m, ok := c.decode(w, r)
	if !ok {
		return
	}
	ctx, cancel := storageContext(r)
	defer cancel()

	id := c.idOf(m)
	_, err := c.get(ctx, id)
	exists := err == nil
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		utils.RespondInternal(w, r, err)
		return
	}

	if err := c.save(ctx, m); err != nil {
		respondSaveError(w, r, err)
		return
	}

	out := c.toDTO(m)
	if exists {
		c.events.Emit(ctx, mq.NewEvent(c.updated, id.String(), out))
		utils.RespondWithJSON(w, http.StatusOK, out)
		return
	}
	c.events.Emit(ctx, mq.NewEvent(c.created, id.String(), out))
	w.Header().Set("Location", id.String())
	utils.RespondWithJSON(w, http.StatusCreated, out)
}

// Edit replaces an existing entity. The path id wins over any id in the body.
func (c *collection[M, D]) Edit(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, ok := utils.ParseID(ps.ByName("id"))
	if !ok {
		utils.RespondWithError(w, http.StatusBadRequest, MsgBadID)
		return
	}
	payload := c.newDTO()
	if err := utils.DecodeJSON(w, r, payload, maxBodyBytes); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, MsgBadBody)
		return
	}
	payload.SetID(id.String())
	if ok, msgs := payload.Validate(); !ok {
		utils.RespondWithError(w, http.StatusBadRequest, utils.FormatValidationMessages(msgs))
		return
	}

	ctx, cancel := storageContext(r)
	defer cancel()

	if _, err := c.get(ctx, id); errors.Is(err, db.ErrNotFound) {
		utils.RespondWithError(w, http.StatusNotFound, MsgNotFound)
		return
	} else if err != nil {
		utils.RespondInternal(w, r, err)
		return
	}

	m, err := c.fromDTO(payload)
	if err != nil {
		respondMappingError(w, err)
		return
	}
	if err := c.save(ctx, m); err != nil {
		respondSaveError(w, r, err)
		return
	}
	c.events.Emit(ctx, mq.NewEvent(c.updated, id.String(), c.toDTO(m)))
	w.WriteHeader(http.StatusNoContent)
}

func (c *collection[M, D]) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, ok := utils.ParseID(ps.ByName("id"))
	if !ok {
		utils.RespondWithError(w, http.StatusBadRequest, MsgBadID)
		return
	}
	ctx, cancel := storageContext(r)
	defer cancel()

	switch err := c.remove(ctx, id); {
	case errors.Is(err, db.ErrNotFound):
		utils.RespondWithError(w, http.StatusNotFound, MsgNotFound)
		return
	case errors.Is(err, db.ErrInUse):
		utils.RespondWithError(w, http.StatusBadRequest, MsgInUse)
		return
	case err != nil:
		utils.RespondInternal(w, r, err)
		return
	}
	c.events.Emit(ctx, mq.NewEvent(c.deleted, id.String(), nil))
	w.WriteHeader(http.StatusNoContent)
}

// decode reads, validates and maps a payload, answering 400 itself on any
// failure.
func (c *collection[M, D]) decode(w http.ResponseWriter, r *http.Request) (*M, bool) {
	payload := c.newDTO()
	if err := utils.DecodeJSON(w, r, payload, maxBodyBytes); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, MsgBadBody)
		return nil, false
	}
	if ok, msgs := payload.Validate(); !ok {
		utils.RespondWithError(w, http.StatusBadRequest, utils.FormatValidationMessages(msgs))
		return nil, false
	}
	m, err := c.fromDTO(payload)
	if err != nil {
		respondMappingError(w, err)
		return nil, false
	}
	return m, true
}

// respondSaveError answers 400 for a save refused as invalid and 500 for
// anything else.
func respondSaveError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *dto.ValidationError
	if errors.As(err, &verr) {
		utils.RespondWithError(w, http.StatusBadRequest, utils.FormatValidationMessages(verr.Messages))
		return
	}
	utils.RespondInternal(w, r, err)
}

func respondMappingError(w http.ResponseWriter, err error) {
	var verr *dto.ValidationError
	if errors.As(err, &verr) {
		utils.RespondWithError(w, http.StatusBadRequest, utils.FormatValidationMessages(verr.Messages))
		return
	}
	utils.RespondWithError(w, http.StatusBadRequest, utils.FormatValidationMessages([]string{err.Error()}))
}
