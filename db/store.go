package db

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"pantree/models"
)

var (
	ErrNotFound = errors.New("entity not found")
	// ErrInUse is returned when deleting a food that an ingredient still
	// references.
	ErrInUse = errors.New("entity is referenced by other entities")
	// ErrNoImage is returned when deleting an image that is not there.
	ErrNoImage = errors.New("recipe has no image")
)

// Image is a recipe picture as uploaded.
type Image struct {
	ContentType string
	Data        []byte
}

// ImageStore keeps at most one image per recipe. RecipeImage returns nil
// without error when the recipe has none.
type ImageStore interface {
	RecipeImage(ctx context.Context, recipeID uuid.UUID) (*Image, error)
	SetRecipeImage(ctx context.Context, recipeID uuid.UUID, img Image) error
	DeleteRecipeImage(ctx context.Context, recipeID uuid.UUID) error
}

// Store persists foods and recipes. Saves are upserts. Recipes own their
// ingredients; ingredients reference foods by id and loading a recipe
// resolves the current state of each food.
type Store interface {
	ImageStore

	Foods(ctx context.Context) ([]*models.Food, error)
	Food(ctx context.Context, id uuid.UUID) (*models.Food, error)
	SaveFood(ctx context.Context, food *models.Food) error
	DeleteFood(ctx context.Context, id uuid.UUID) error
	RecipesUsingFood(ctx context.Context, foodID uuid.UUID) ([]*models.Recipe, error)

	Recipes(ctx context.Context) ([]*models.Recipe, error)
	Recipe(ctx context.Context, id uuid.UUID) (*models.Recipe, error)
	// SaveRecipe stores the recipe and upserts every food its ingredients
	// reference. Ingredients no longer listed are removed.
	SaveRecipe(ctx context.Context, recipe *models.Recipe) error
	// DeleteRecipe removes the recipe with its ingredients and image.
	DeleteRecipe(ctx context.Context, id uuid.UUID) error

	Close(ctx context.Context) error
}
