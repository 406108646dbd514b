package search

import (
	"context"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"pantree/dto"
	"pantree/logger"
	"pantree/mapper"
	"pantree/utils"
)

// MaxFoodResults caps a single food search.
const MaxFoodResults = 25

// SearchFoods handles GET /search/foods/:query. A nil provider answers 503.
func SearchFoods(p Provider) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if p == nil {
			utils.RespondWithError(w, http.StatusServiceUnavailable, "Food search is not configured on this server.")
			return
		}
		query := ps.ByName("query")

		ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
		defer cancel()

		foods, err := p.Search(ctx, query, MaxFoodResults, 1)
		if err != nil {
			logger.Error("food search failed", zap.String("query", query), zap.Error(err))
			utils.RespondWithError(w, http.StatusBadGateway, "The food search provider could not complete the request.")
			return
		}

		results := make([]dto.Food, 0, len(foods))
		for i := range foods {
			results = append(results, mapper.FoodModelToDTO(&foods[i]))
		}
		utils.RespondWithJSON(w, http.StatusOK, results)
	}
}
