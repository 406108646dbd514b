package cooking

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"
	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"

	"pantree/db"
	"pantree/dto"
	"pantree/mapper"
	"pantree/nutrition"
	"pantree/utils"
)

// nutrientLabels follows the field order of nutrition.Nutrition.Values.
var nutrientLabels = [...]string{
	"Calories",
	"Total fat (g)",
	"Saturated fat (g)",
	"Trans fat (g)",
	"Cholesterol (mg)",
	"Sodium (mg)",
	"Carbohydrates (g)",
	"Fiber (g)",
	"Sugar (g)",
	"Protein (g)",
}

// RecipeLink is where the card's QR code points.
func (h *Handlers) RecipeLink(id string) string {
	return h.PublicURL + "/api/v1/recipes/" + id
}

// GetRecipeCard renders a printable A4 card for the recipe.
func (h *Handlers) GetRecipeCard(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, ok := utils.ParseID(ps.ByName("id"))
	if !ok {
		utils.RespondWithError(w, http.StatusBadRequest, MsgBadID)
		return
	}
	ctx, cancel := storageContext(r)
	defer cancel()

	recipe, err := h.recipes.get(ctx, id)
	if err != nil {
		respondRecipeLookup(w, r, err)
		return
	}
	card := mapper.RecipeModelToDTO(recipe)

	qrPNG, err := qrcode.Encode(h.RecipeLink(id.String()), qrcode.Medium, 256)
	if err != nil {
		utils.RespondInternal(w, r, fmt.Errorf("encode qr code: %w", err))
		return
	}

	var buf bytes.Buffer
	if err := renderCard(&buf, &card, qrPNG); err != nil {
		utils.RespondInternal(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=recipe-"+id.String()+".pdf")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func respondRecipeLookup(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, db.ErrNotFound) {
		utils.RespondWithError(w, http.StatusNotFound, MsgRecipeNotFound)
		return
	}
	utils.RespondInternal(w, r, err)
}

func renderCard(buf *bytes.Buffer, recipe *dto.Recipe, qrPNG []byte) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(deref(recipe.Name), true)
	pdf.AddPage()

	imageOpts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", imageOpts, bytes.NewReader(qrPNG))
	pdf.ImageOptions("qr", 160, 10, 35, 35, false, imageOpts, 0, "")

	pdf.SetFont("Arial", "B", 18)
	pdf.MultiCell(140, 9, tr(deref(recipe.Name)), "", "L", false)
	pdf.Ln(2)

	pdf.SetFont("Arial", "", 11)
	if recipe.Description != nil && *recipe.Description != "" {
		pdf.MultiCell(140, 6, tr(*recipe.Description), "", "L", false)
		pdf.Ln(2)
	}
	pdf.Cell(0, 6, tr(summaryLine(recipe)))
	pdf.SetY(50)

	section(pdf, "Ingredients")
	for _, ing := range recipe.Ingredients {
		line := fmt.Sprintf("- %s %s %s", formatNumber(ing.Quantity.Value), ing.Quantity.Unit, deref(ing.Food.Name))
		pdf.MultiCell(0, 6, tr(line), "", "L", false)
	}

	section(pdf, "Instructions")
	for i, step := range recipe.Instructions {
		pdf.MultiCell(0, 6, tr(fmt.Sprintf("%d. %s", i+1, step)), "", "L", false)
	}

	section(pdf, "Nutrition per serving")
	values := nutrition.Round(recipe.NutritionPerServing).Values()
	printed := 0
	for i, v := range values {
		if v == nil {
			continue
		}
		pdf.CellFormat(60, 6, nutrientLabels[i], "B", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, formatNumber(*v), "B", 1, "R", false, 0, "")
		printed++
	}
	if printed == 0 {
		pdf.Cell(0, 6, "No nutrition information available.")
	}

	return pdf.Output(buf)
}

func section(pdf *gofpdf.Fpdf, title string) {
	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 13)
	pdf.Cell(0, 8, title)
	pdf.Ln(9)
	pdf.SetFont("Arial", "", 11)
}

func summaryLine(recipe *dto.Recipe) string {
	line := fmt.Sprintf("Serves %d", derefUint(recipe.Servings))
	if recipe.PreparationTime != nil {
		line += fmt.Sprintf("  |  Prep %d min", *recipe.PreparationTime)
	}
	if recipe.CookingTime != nil {
		line += fmt.Sprintf("  |  Cook %d min", *recipe.CookingTime)
	}
	if recipe.TotalTime != nil {
		line += fmt.Sprintf("  |  Total %d min", *recipe.TotalTime)
	}
	return line
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefUint(v *uint) uint {
	if v == nil {
		return 0
	}
	return *v
}
