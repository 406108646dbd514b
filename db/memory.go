package db

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"pantree/models"
)

// MemoryStore keeps everything in process memory. Values are stored as
// records so callers never share state with the store.
type MemoryStore struct {
	mu      sync.RWMutex
	foods   map[string]FoodRecord
	recipes map[string]RecipeRecord
	images  map[string]Image
	// insertion order, so listings are stable
	foodOrder   []string
	recipeOrder []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		foods:   make(map[string]FoodRecord),
		recipes: make(map[string]RecipeRecord),
		images:  make(map[string]Image),
	}
}

func (s *MemoryStore) Foods(ctx context.Context) ([]*models.Food, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Food, 0, len(s.foodOrder))
	for _, id := range s.foodOrder {
		f, err := foodFromRecord(s.foods[id])
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func (s *MemoryStore) Food(ctx context.Context, id uuid.UUID) (*models.Food, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.foods[id.String()]
	if !ok {
		return nil, ErrNotFound
	}
	return foodFromRecord(rec)
}

func (s *MemoryStore) SaveFood(ctx context.Context, food *models.Food) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putFood(foodToRecord(food))
	return nil
}

func (s *MemoryStore) putFood(rec FoodRecord) {
	if _, ok := s.foods[rec.ID]; !ok {
		s.foodOrder = append(s.foodOrder, rec.ID)
	}
	s.foods[rec.ID] = rec
}

func (s *MemoryStore) DeleteFood(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := id.String()
	if _, ok := s.foods[key]; !ok {
		return ErrNotFound
	}
	for _, rec := range s.recipes {
		if slices.Contains(foodIDs(rec), key) {
			return ErrInUse
		}
	}
	delete(s.foods, key)
	s.foodOrder = slices.DeleteFunc(s.foodOrder, func(v string) bool { return v == key })
	return nil
}

func (s *MemoryStore) RecipesUsingFood(ctx context.Context, foodID uuid.UUID) ([]*models.Recipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.foods[foodID.String()]; !ok {
		return nil, ErrNotFound
	}
	return s.loadRecipes(func(rec RecipeRecord) bool {
		return slices.Contains(foodIDs(rec), foodID.String())
	})
}

func (s *MemoryStore) Recipes(ctx context.Context) ([]*models.Recipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadRecipes(func(RecipeRecord) bool { return true })
}

func (s *MemoryStore) loadRecipes(keep func(RecipeRecord) bool) ([]*models.Recipe, error) {
	out := []*models.Recipe{}
	for _, id := range s.recipeOrder {
		rec := s.recipes[id]
		if !keep(rec) {
			continue
		}
		r, err := s.resolve(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *MemoryStore) resolve(rec RecipeRecord) (*models.Recipe, error) {
	ids := foodIDs(rec)
	recs := make([]FoodRecord, 0, len(ids))
	for _, id := range ids {
		if f, ok := s.foods[id]; ok {
			recs = append(recs, f)
		}
	}
	foods, err := foodIndex(recs)
	if err != nil {
		return nil, err
	}
	return recipeFromRecord(rec, foods)
}

func (s *MemoryStore) Recipe(ctx context.Context, id uuid.UUID) (*models.Recipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.recipes[id.String()]
	if !ok {
		return nil, ErrNotFound
	}
	return s.resolve(rec)
}

func (s *MemoryStore) SaveRecipe(ctx context.Context, recipe *models.Recipe) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, foods := recipeToRecord(recipe)
	for _, f := range foods {
		s.putFood(f)
	}
	if _, ok := s.recipes[rec.ID]; !ok {
		s.recipeOrder = append(s.recipeOrder, rec.ID)
	}
	s.recipes[rec.ID] = rec
	return nil
}

func (s *MemoryStore) DeleteRecipe(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := id.String()
	if _, ok := s.recipes[key]; !ok {
		return ErrNotFound
	}
	delete(s.recipes, key)
	delete(s.images, key)
	s.recipeOrder = slices.DeleteFunc(s.recipeOrder, func(v string) bool { return v == key })
	return nil
}

func (s *MemoryStore) RecipeImage(ctx context.Context, recipeID uuid.UUID) (*Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := recipeID.String()
	if _, ok := s.recipes[key]; !ok {
		return nil, ErrNotFound
	}
	img, ok := s.images[key]
	if !ok {
		return nil, nil
	}
	return &Image{ContentType: img.ContentType, Data: slices.Clone(img.Data)}, nil
}

func (s *MemoryStore) SetRecipeImage(ctx context.Context, recipeID uuid.UUID, img Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := recipeID.String()
	if _, ok := s.recipes[key]; !ok {
		return ErrNotFound
	}
	s.images[key] = Image{ContentType: img.ContentType, Data: slices.Clone(img.Data)}
	return nil
}

func (s *MemoryStore) DeleteRecipeImage(ctx context.Context, recipeID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := recipeID.String()
	if _, ok := s.recipes[key]; !ok {
		return ErrNotFound
	}
	if _, ok := s.images[key]; !ok {
		return ErrNoImage
	}
	delete(s.images, key)
	return nil
}

func (s *MemoryStore) Close(ctx context.Context) error { return nil }
