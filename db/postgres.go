package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"pantree/logger"
	"pantree/models"
)

const connectAttempts = 5

// PostgresStore keeps foods, recipes, ingredients and images in their own
// tables. Foreign keys restrict deleting referenced foods and cascade recipe
// deletion to ingredients and images.
type PostgresStore struct {
	DB *gorm.DB
}

// NewPostgres connects with exponential backoff and migrates the schema.
func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	var gdb *gorm.DB
	var err error

	for i := 1; i <= connectAttempts; i++ {
		gdb, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		})
		if err == nil {
			sqlDB, dbErr := gdb.DB()
			if dbErr == nil {
				if err = sqlDB.PingContext(ctx); err == nil {
					break
				}
			} else {
				err = dbErr
			}
		}

		logger.Warn("postgres connection attempt failed", zap.Int("attempt", i), zap.Error(err))
		if i == connectAttempts {
			return nil, fmt.Errorf("connect to postgres after %d attempts: %w", connectAttempts, err)
		}
		wait := time.Duration(1<<uint(i-1)) * time.Second
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}

	s := &PostgresStore{DB: gdb}
	if err := s.Migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) Migrate() error {
	for _, model := range []interface{}{&FoodRecord{}, &RecipeRecord{}, &IngredientRecord{}, &ImageRecord{}} {
		if err := s.DB.AutoMigrate(model); err != nil {
			return fmt.Errorf("migrate %T: %w", model, err)
		}
	}
	return nil
}

func (s *PostgresStore) Close(ctx context.Context) error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *PostgresStore) Foods(ctx context.Context) ([]*models.Food, error) {
	var recs []FoodRecord
	if err := s.DB.WithContext(ctx).Order("name").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("find foods: %w", err)
	}
	out := make([]*models.Food, 0, len(recs))
	for _, rec := range recs {
		f, err := foodFromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func (s *PostgresStore) Food(ctx context.Context, id uuid.UUID) (*models.Food, error) {
	var rec FoodRecord
	if err := s.DB.WithContext(ctx).First(&rec, "id = ?", id.String()).Error; err != nil {
		return nil, notFound(err)
	}
	return foodFromRecord(rec)
}

// upsert makes the following Create replace rows whose primary key exists.
func upsert(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.OnConflict{UpdateAll: true})
}

func upsertFoods(tx *gorm.DB, recs []FoodRecord) error {
	if len(recs) == 0 {
		return nil
	}
	return upsert(tx).Create(&recs).Error
}

// countFoodRefs counts the ingredients that reference a food.
func countFoodRefs(tx *gorm.DB, foodID string, refs *int64) *gorm.DB {
	return tx.Model(&IngredientRecord{}).Where("food_id = ?", foodID).Count(refs)
}

// dropIngredients deletes the ingredients of a recipe that are not in keep.
func dropIngredients(tx *gorm.DB, recipeID string, keep []string) *gorm.DB {
	q := tx.Where("recipe_id = ?", recipeID)
	if len(keep) > 0 {
		q = q.Where("id NOT IN ?", keep)
	}
	return q.Delete(&IngredientRecord{})
}

func (s *PostgresStore) SaveFood(ctx context.Context, food *models.Food) error {
	if err := upsertFoods(s.DB.WithContext(ctx), []FoodRecord{foodToRecord(food)}); err != nil {
		return fmt.Errorf("save food: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteFood(ctx context.Context, id uuid.UUID) error {
	key := id.String()
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec FoodRecord
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&rec, "id = ?", key).Error; err != nil {
			return notFound(err)
		}
		var refs int64
		if err := countFoodRefs(tx, key, &refs).Error; err != nil {
			return fmt.Errorf("count food references: %w", err)
		}
		if refs > 0 {
			return ErrInUse
		}
		if err := tx.Delete(&FoodRecord{}, "id = ?", key).Error; err != nil {
			return fmt.Errorf("delete food: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) RecipesUsingFood(ctx context.Context, foodID uuid.UUID) ([]*models.Recipe, error) {
	if _, err := s.Food(ctx, foodID); err != nil {
		return nil, err
	}
	sub := s.DB.Model(&IngredientRecord{}).Select("recipe_id").Where("food_id = ?", foodID.String())
	return s.findRecipes(ctx, s.DB.WithContext(ctx).Where("id IN (?)", sub))
}

func (s *PostgresStore) Recipes(ctx context.Context) ([]*models.Recipe, error) {
	return s.findRecipes(ctx, s.DB.WithContext(ctx))
}

func (s *PostgresStore) findRecipes(ctx context.Context, q *gorm.DB) ([]*models.Recipe, error) {
	var recs []RecipeRecord
	if err := q.Preload("Ingredients").Order("name").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("find recipes: %w", err)
	}
	foods, err := s.foodsFor(ctx, recs...)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Recipe, 0, len(recs))
	for _, rec := range recs {
		r, err := recipeFromRecord(rec, foods)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *PostgresStore) foodsFor(ctx context.Context, recs ...RecipeRecord) (map[string]*models.Food, error) {
	ids := foodIDs(recs...)
	if len(ids) == 0 {
		return map[string]*models.Food{}, nil
	}
	var foods []FoodRecord
	if err := s.DB.WithContext(ctx).Where("id IN ?", ids).Find(&foods).Error; err != nil {
		return nil, fmt.Errorf("find ingredient foods: %w", err)
	}
	return foodIndex(foods)
}

func (s *PostgresStore) Recipe(ctx context.Context, id uuid.UUID) (*models.Recipe, error) {
	var rec RecipeRecord
	if err := s.DB.WithContext(ctx).Preload("Ingredients").First(&rec, "id = ?", id.String()).Error; err != nil {
		return nil, notFound(err)
	}
	foods, err := s.foodsFor(ctx, rec)
	if err != nil {
		return nil, err
	}
	return recipeFromRecord(rec, foods)
}

func (s *PostgresStore) SaveRecipe(ctx context.Context, recipe *models.Recipe) error {
	rec, foods := recipeToRecord(recipe)
	ingredients := rec.Ingredients
	rec.Ingredients = nil

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := upsertFoods(tx, foods); err != nil {
			return fmt.Errorf("save ingredient foods: %w", err)
		}
		if err := upsert(tx.Omit(clause.Associations)).Create(&rec).Error; err != nil {
			return fmt.Errorf("save recipe: %w", err)
		}

		keep := make([]string, 0, len(ingredients))
		for _, ing := range ingredients {
			keep = append(keep, ing.ID)
		}
		if err := dropIngredients(tx, rec.ID, keep).Error; err != nil {
			return fmt.Errorf("remove dropped ingredients: %w", err)
		}
		if len(ingredients) == 0 {
			return nil
		}
		err := upsert(tx.Omit(clause.Associations)).Create(&ingredients).Error
		if err != nil {
			return fmt.Errorf("save ingredients: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) DeleteRecipe(ctx context.Context, id uuid.UUID) error {
	res := s.DB.WithContext(ctx).Delete(&RecipeRecord{}, "id = ?", id.String())
	if res.Error != nil {
		return fmt.Errorf("delete recipe: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) recipeExists(ctx context.Context, id string) error {
	var n int64
	if err := s.DB.WithContext(ctx).Model(&RecipeRecord{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return fmt.Errorf("count recipes: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) RecipeImage(ctx context.Context, recipeID uuid.UUID) (*Image, error) {
	key := recipeID.String()
	if err := s.recipeExists(ctx, key); err != nil {
		return nil, err
	}
	var rec ImageRecord
	err := s.DB.WithContext(ctx).First(&rec, "recipe_id = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find recipe image: %w", err)
	}
	return &Image{ContentType: rec.ContentType, Data: rec.Data}, nil
}

func (s *PostgresStore) SetRecipeImage(ctx context.Context, recipeID uuid.UUID, img Image) error {
	key := recipeID.String()
	if err := s.recipeExists(ctx, key); err != nil {
		return err
	}
	rec := ImageRecord{RecipeID: key, ContentType: img.ContentType, Data: img.Data}
	err := upsert(s.DB.WithContext(ctx).Omit(clause.Associations)).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("save recipe image: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteRecipeImage(ctx context.Context, recipeID uuid.UUID) error {
	key := recipeID.String()
	if err := s.recipeExists(ctx, key); err != nil {
		return err
	}
	res := s.DB.WithContext(ctx).Delete(&ImageRecord{}, "recipe_id = ?", key)
	if res.Error != nil {
		return fmt.Errorf("delete recipe image: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNoImage
	}
	return nil
}
