package mapper

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pantree/dto"
	"pantree/logger"
	"pantree/measure"
	"pantree/models"
	"pantree/nutrition"
)

func parseID(id *string) (uuid.UUID, error) {
	if id == nil {
		return uuid.New(), nil
	}
	return uuid.Parse(*id)
}

func idString(id uuid.UUID) *string {
	return dto.String(id.String())
}

// MinutesToDuration maps boundary minutes to a duration.
func MinutesToDuration(minutes *uint) *time.Duration {
	if minutes == nil {
		return nil
	}
	d := time.Duration(*minutes) * time.Minute
	return &d
}

// DurationToMinutes truncates to whole minutes.
func DurationToMinutes(d *time.Duration) *uint {
	if d == nil {
		return nil
	}
	return dto.Uint(uint(*d / time.Minute))
}

// MeasurementDTOToModel parses a validated FoodMeasurement.
func MeasurementDTOToModel(m dto.FoodMeasurement) (measure.Measurement, error) {
	return m.Measurement()
}

// MeasurementModelToDTO renders a measurement with its display unit name.
func MeasurementModelToDTO(m measure.Measurement) dto.FoodMeasurement {
	return dto.FoodMeasurement{Unit: m.Unit.String(), Value: m.Value}
}

// FoodDTOToModel maps a Food payload to the domain model. A missing id gets
// a fresh one.
func FoodDTOToModel(d *dto.Food) (*models.Food, error) {
	id, err := parseID(d.ID)
	if err != nil {
		return nil, fmt.Errorf("food id: %w", err)
	}
	food := &models.Food{ID: id, Nutrition: d.Nutrition.Clone()}
	if d.Name != nil {
		food.Name = *d.Name
	}
	if d.Measurement != nil {
		m, err := MeasurementDTOToModel(*d.Measurement)
		if err != nil {
			return nil, fmt.Errorf("food measurement: %w", err)
		}
		food.Measurement = &m
	}
	return food, nil
}

// FoodModelToDTO maps a Food model to its payload.
func FoodModelToDTO(f *models.Food) dto.Food {
	out := dto.Food{
		ID:        idString(f.ID),
		Name:      dto.String(f.Name),
		Nutrition: f.Nutrition.Clone(),
	}
	if f.Measurement != nil {
		m := MeasurementModelToDTO(*f.Measurement)
		out.Measurement = &m
	}
	return out
}

// IngredientDTOToModel maps an Ingredient payload, including its food.
func IngredientDTOToModel(d *dto.Ingredient) (*models.Ingredient, error) {
	id, err := parseID(d.ID)
	if err != nil {
		return nil, fmt.Errorf("ingredient id: %w", err)
	}
	food, err := FoodDTOToModel(&d.Food)
	if err != nil {
		return nil, err
	}
	quantity, err := MeasurementDTOToModel(d.Quantity)
	if err != nil {
		return nil, fmt.Errorf("ingredient quantity: %w", err)
	}
	return &models.Ingredient{ID: id, Food: food, Quantity: quantity}, nil
}

// IngredientModelToDTO fills the derived nutrition. Writes keep every stored
// ingredient compatible with its food, so a failure here means the data was
// changed behind the API; it is logged and the nutrition left unknown.
func IngredientModelToDTO(i *models.Ingredient) dto.Ingredient {
	out := dto.Ingredient{
		ID:       idString(i.ID),
		Quantity: MeasurementModelToDTO(i.Quantity),
	}
	if i.Food != nil {
		out.Food = FoodModelToDTO(i.Food)
	}
	n, err := i.Nutrition()
	if err != nil {
		logger.Warn("ingredient nutrition unavailable",
			zap.String("ingredientId", i.ID.String()),
			zap.Error(err),
		)
		return out
	}
	out.Nutrition = n
	return out
}

// RecipeDTOToModel maps a Recipe payload. Missing name and servings take the
// recipe defaults. Ingredients whose quantity does not share a dimension with
// their food's measurement are reported as a *dto.ValidationError.
func RecipeDTOToModel(d *dto.Recipe) (*models.Recipe, error) {
	id, err := parseID(d.ID)
	if err != nil {
		return nil, fmt.Errorf("recipe id: %w", err)
	}
	r := &models.Recipe{
		ID:              id,
		Name:            models.DefaultRecipeName,
		Description:     d.Description,
		Instructions:    append([]string{}, d.Instructions...),
		Ingredients:     make([]*models.Ingredient, 0, len(d.Ingredients)),
		Servings:        models.DefaultRecipeServings,
		PreparationTime: MinutesToDuration(d.PreparationTime),
		CookingTime:     MinutesToDuration(d.CookingTime),
	}
	if d.Name != nil {
		r.Name = *d.Name
	}
	if d.Servings != nil {
		r.Servings = *d.Servings
	}

	var msgs []string
	foods := make(map[uuid.UUID]*models.Food, len(d.Ingredients))
	for i := range d.Ingredients {
		ing, err := IngredientDTOToModel(&d.Ingredients[i])
		if err != nil {
			return nil, err
		}
		if prev, ok := foods[ing.Food.ID]; ok {
			if !sameFood(prev, ing.Food) {
				msgs = append(msgs, fmt.Sprintf("(%s): food %s is given with different details by several ingredients", ing.Food.Name, ing.Food.ID))
				continue
			}
			ing.Food = prev
		} else {
			foods[ing.Food.ID] = ing.Food
		}
		if _, err := ing.Nutrition(); err != nil {
			msgs = append(msgs, fmt.Sprintf("(%s): %s", ing.Food.Name, err))
			continue
		}
		r.Ingredients = append(r.Ingredients, ing)
	}
	if len(msgs) > 0 {
		return nil, &dto.ValidationError{Messages: msgs}
	}
	return r, nil
}

func sameFood(a, b *models.Food) bool {
	if a.Name != b.Name || !a.Nutrition.Equal(b.Nutrition) {
		return false
	}
	if a.Measurement == nil || b.Measurement == nil {
		return a.Measurement == b.Measurement
	}
	return *a.Measurement == *b.Measurement
}

// RecipeModelToDTO maps a Recipe with every derived field filled.
func RecipeModelToDTO(r *models.Recipe) dto.Recipe {
	out := dto.Recipe{
		ID:              idString(r.ID),
		Name:            dto.String(r.Name),
		Description:     r.Description,
		Instructions:    append([]string{}, r.Instructions...),
		Ingredients:     make([]dto.Ingredient, 0, len(r.Ingredients)),
		Servings:        dto.Uint(r.Servings),
		PreparationTime: DurationToMinutes(r.PreparationTime),
		CookingTime:     DurationToMinutes(r.CookingTime),
		TotalTime:       DurationToMinutes(r.TotalTime()),
	}
	parts := make([]*nutrition.Nutrition, 0, len(r.Ingredients))
	for _, ing := range r.Ingredients {
		d := IngredientModelToDTO(ing)
		out.Ingredients = append(out.Ingredients, d)
		parts = append(parts, d.Nutrition)
	}
	servings := r.Servings
	if servings == 0 {
		servings = models.DefaultRecipeServings
	}
	out.TotalNutrition = nutrition.Sum(parts...)
	out.NutritionPerServing = nutrition.PerServing(out.TotalNutrition, servings)
	return out
}
