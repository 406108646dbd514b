package cooking

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"

	"pantree/db"
	"pantree/mq"
	"pantree/utils"
)

const (
	MsgRecipeNotFound = "A recipe with the provided ID does not exist."
	MsgNoImage        = "The recipe does not have an image to delete."
	MsgMissingImage   = "An image must be uploaded in the \"image\" form field."
	MsgBadImage       = "The uploaded file is not a supported image."
	maxImageBytes     = 10 << 20
)

// recipeID parses the path id and checks the recipe exists, answering the
// error itself when it does not.
func (h *Handlers) recipeID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) (uuid.UUID, bool) {
	id, ok := utils.ParseID(ps.ByName("id"))
	if !ok {
		utils.RespondWithError(w, http.StatusBadRequest, MsgBadID)
		return uuid.Nil, false
	}
	ctx, cancel := storageContext(r)
	defer cancel()

	if _, err := h.Store.Recipe(ctx, id); errors.Is(err, db.ErrNotFound) {
		utils.RespondWithError(w, http.StatusNotFound, MsgRecipeNotFound)
		return uuid.Nil, false
	} else if err != nil {
		utils.RespondInternal(w, r, err)
		return uuid.Nil, false
	}
	return id, true
}

// GetRecipeImage answers 204 when the recipe has no image.
func (h *Handlers) GetRecipeImage(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, ok := h.recipeID(w, r, ps)
	if !ok {
		return
	}
	ctx, cancel := storageContext(r)
	defer cancel()

	img, err := h.Images.RecipeImage(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		utils.RespondWithError(w, http.StatusNotFound, MsgRecipeNotFound)
		return
	}
	if err != nil {
		utils.RespondInternal(w, r, err)
		return
	}
	if img == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", img.ContentType)
	w.WriteHeader(http.StatusOK)
	w.Write(img.Data)
}

func (h *Handlers) SetRecipeImage(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, ok := h.recipeID(w, r, ps)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes+1<<20)
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, MsgMissingImage)
		return
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, MsgMissingImage)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImageBytes))
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, MsgMissingImage)
		return
	}
	img, err := prepareImage(data, h.MaxImageDim)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, MsgBadImage)
		return
	}

	ctx, cancel := storageContext(r)
	defer cancel()

	if err := h.Images.SetRecipeImage(ctx, id, img); errors.Is(err, db.ErrNotFound) {
		utils.RespondWithError(w, http.StatusNotFound, MsgRecipeNotFound)
		return
	} else if err != nil {
		utils.RespondInternal(w, r, err)
		return
	}
	h.Events.Emit(ctx, mq.NewEvent(mq.RecipeImage, id.String(), map[string]string{"contentType": img.ContentType}))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) DeleteRecipeImage(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, ok := h.recipeID(w, r, ps)
	if !ok {
		return
	}
	ctx, cancel := storageContext(r)
	defer cancel()

	switch err := h.Images.DeleteRecipeImage(ctx, id); {
	case errors.Is(err, db.ErrNoImage):
		utils.RespondWithError(w, http.StatusBadRequest, MsgNoImage)
		return
	case errors.Is(err, db.ErrNotFound):
		utils.RespondWithError(w, http.StatusNotFound, MsgRecipeNotFound)
		return
	case err != nil:
		utils.RespondInternal(w, r, err)
		return
	}
	h.Events.Emit(ctx, mq.NewEvent(mq.RecipeImage, id.String(), nil))
	w.WriteHeader(http.StatusNoContent)
}

// prepareImage rejects anything that does not decode as an image and shrinks
// images larger than maxDim on either side. Images that fit are kept
// byte-for-byte.
func prepareImage(data []byte, maxDim int) (db.Image, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return db.Image{}, fmt.Errorf("decode image header: %w", err)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return db.Image{}, fmt.Errorf("decode image: %w", err)
	}

	b := img.Bounds()
	if maxDim <= 0 || (b.Dx() <= maxDim && b.Dy() <= maxDim) {
		return db.Image{ContentType: "image/" + format, Data: data}, nil
	}

	f, err := imaging.FormatFromExtension(format)
	if err != nil {
		f, format = imaging.PNG, "png"
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, imaging.Fit(img, maxDim, maxDim, imaging.Lanczos), f); err != nil {
		return db.Image{}, fmt.Errorf("encode image: %w", err)
	}
	return db.Image{ContentType: "image/" + format, Data: buf.Bytes()}, nil
}
