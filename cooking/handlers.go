// Package cooking serves the food and recipe collections over HTTP.
package cooking

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"pantree/config"
	"pantree/db"
	"pantree/dto"
	"pantree/logger"
	"pantree/mapper"
	"pantree/models"
	"pantree/mq"
	"pantree/utils"
)

// Handlers holds the dependencies shared by every cooking route.
type Handlers struct {
	Store db.Store
	// Images defaults to Store.
	Images      db.ImageStore
	Events      mq.Emitter
	PublicURL   string
	MaxImageDim int

	foods   *collection[models.Food, *dto.Food]
	recipes *collection[models.Recipe, *dto.Recipe]
}

func New(store db.Store, events mq.Emitter) *Handlers {
	if events == nil {
		events = mq.Nop{}
	}
	h := &Handlers{
		Store:       store,
		Images:      store,
		Events:      events,
		MaxImageDim: config.DefaultMaxImageDim,
	}

	h.foods = &collection[models.Food, *dto.Food]{
		newDTO: func() *dto.Food { return &dto.Food{} },
		toDTO: func(f *models.Food) *dto.Food {
			out := mapper.FoodModelToDTO(f)
			return &out
		},
		fromDTO: mapper.FoodDTOToModel,
		idOf:    func(f *models.Food) uuid.UUID { return f.ID },
		nameOf:  func(f *models.Food) string { return f.Name },
		list:    store.Foods,
		get:     store.Food,
		save:    h.saveFood,
		remove:  store.DeleteFood,
		events:  events,
		created: mq.FoodCreated,
		updated: mq.FoodUpdated,
		deleted: mq.FoodDeleted,
	}

	h.recipes = &collection[models.Recipe, *dto.Recipe]{
		newDTO: func() *dto.Recipe { return &dto.Recipe{} },
		toDTO: func(r *models.Recipe) *dto.Recipe {
			out := mapper.RecipeModelToDTO(r)
			return &out
		},
		fromDTO: mapper.RecipeDTOToModel,
		idOf:    func(r *models.Recipe) uuid.UUID { return r.ID },
		nameOf:  func(r *models.Recipe) string { return r.Name },
		list:    store.Recipes,
		get:     store.Recipe,
		save:    h.saveRecipe,
		remove:  h.removeRecipe,
		events:  events,
		created: mq.RecipeCreated,
		updated: mq.RecipeUpdated,
		deleted: mq.RecipeDeleted,
	}
	return h
}

// saveFood refuses a food state that would leave an ingredient of some
// recipe without a common dimension with its food.
func (h *Handlers) saveFood(ctx context.Context, food *models.Food) error {
	msgs, err := h.incompatibleUses(ctx, food, uuid.Nil)
	if err != nil {
		return err
	}
	if len(msgs) > 0 {
		return &dto.ValidationError{Messages: msgs}
	}
	return h.Store.SaveFood(ctx, food)
}

// saveRecipe applies the same check to every food the recipe upserts. The
// recipe's own stored ingredients are about to be replaced and are skipped.
func (h *Handlers) saveRecipe(ctx context.Context, recipe *models.Recipe) error {
	var msgs []string
	for _, food := range recipe.Foods() {
		m, err := h.incompatibleUses(ctx, food, recipe.ID)
		if err != nil {
			return err
		}
		msgs = append(msgs, m...)
	}
	if len(msgs) > 0 {
		return &dto.ValidationError{Messages: msgs}
	}
	return h.Store.SaveRecipe(ctx, recipe)
}

// incompatibleUses lists the stored ingredients, outside recipe skip, whose
// quantity could not be scaled against food's base measurement.
func (h *Handlers) incompatibleUses(ctx context.Context, food *models.Food, skip uuid.UUID) ([]string, error) {
	recipes, err := h.Store.RecipesUsingFood(ctx, food.ID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var msgs []string
	for _, rec := range recipes {
		if rec.ID == skip {
			continue
		}
		for _, ing := range rec.Ingredients {
			if ing.Food == nil || ing.Food.ID != food.ID {
				continue
			}
			candidate := models.Ingredient{Food: food, Quantity: ing.Quantity}
			if _, err := candidate.Nutrition(); err != nil {
				msgs = append(msgs, fmt.Sprintf("(%s): recipe %q uses %s: %s", food.Name, rec.Name, ing.Quantity, err))
			}
		}
	}
	return msgs, nil
}

// imagePurger is implemented by image stores kept outside the main store,
// whose images do not go away with the recipe.
type imagePurger interface {
	PurgeRecipeImage(ctx context.Context, recipeID uuid.UUID) error
}

func (h *Handlers) removeRecipe(ctx context.Context, id uuid.UUID) error {
	if err := h.Store.DeleteRecipe(ctx, id); err != nil {
		return err
	}
	if p, ok := h.Images.(imagePurger); ok {
		if err := p.PurgeRecipeImage(ctx, id); err != nil {
			logger.Warn("failed to purge recipe image", zap.String("recipeId", id.String()), zap.Error(err))
		}
	}
	return nil
}

func (h *Handlers) GetFoods(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.foods.GetAll(w, r, ps)
}

func (h *Handlers) GetFood(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.foods.GetSingle(w, r, ps)
}

func (h *Handlers) AddFood(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.foods.Add(w, r, ps)
}

func (h *Handlers) EditFood(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.foods.Edit(w, r, ps)
}

func (h *Handlers) DeleteFood(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.foods.Delete(w, r, ps)
}

// GetRecipesUsingFood lists every recipe with an ingredient made of the food.
func (h *Handlers) GetRecipesUsingFood(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, ok := utils.ParseID(ps.ByName("id"))
	if !ok {
		utils.RespondWithError(w, http.StatusBadRequest, MsgBadID)
		return
	}
	ctx, cancel := storageContext(r)
	defer cancel()

	if _, err := h.Store.Food(ctx, id); errors.Is(err, db.ErrNotFound) {
		utils.RespondWithError(w, http.StatusNotFound, MsgNotFound)
		return
	} else if err != nil {
		utils.RespondInternal(w, r, err)
		return
	}

	recipes, err := h.Store.RecipesUsingFood(ctx, id)
	if err != nil {
		utils.RespondInternal(w, r, err)
		return
	}
	out := make([]dto.Recipe, 0, len(recipes))
	for _, rec := range recipes {
		out = append(out, mapper.RecipeModelToDTO(rec))
	}
	utils.RespondWithJSON(w, http.StatusOK, out)
}

func (h *Handlers) GetRecipes(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.recipes.GetAll(w, r, ps)
}

func (h *Handlers) GetRecipe(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.recipes.GetSingle(w, r, ps)
}

func (h *Handlers) AddRecipe(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.recipes.Add(w, r, ps)
}

func (h *Handlers) EditRecipe(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.recipes.Edit(w, r, ps)
}

func (h *Handlers) DeleteRecipe(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.recipes.Delete(w, r, ps)
}
