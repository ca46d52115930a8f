package generator

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tbourn/go-recipe-backend/internal/domain"
)

// Policy maps each goal to the macro factors the rule generator applies.
//
//	reduce_calories   kcal, carbs, fat x0.9
//	increase_protein  protein x1.25, kcal x1.05
//	reduce_carbs      carbs x0.7, kcal x0.9
//	reduce_fat        fat x0.7, kcal x0.9
var Policy = map[domain.Goal]domain.MacroFactors{
	domain.GoalReduceCalories:  {Kcal: 0.9, Carbs: 0.9, Fat: 0.9},
	domain.GoalIncreaseProtein: {Kcal: 1.05, Protein: 1.25},
	domain.GoalReduceCarbs:     {Kcal: 0.9, Carbs: 0.7},
	domain.GoalReduceFat:       {Kcal: 0.9, Fat: 0.7},
}

var guidance = map[domain.Goal]string{
	domain.GoalReduceCalories:  "Use about 10% less oil, sugar and starch; bulk up with vegetables.",
	domain.GoalIncreaseProtein: "Add a lean protein (chicken breast, tofu, Greek yogurt or legumes).",
	domain.GoalReduceCarbs:     "Swap part of the grains or potatoes for cauliflower or leafy greens.",
	domain.GoalReduceFat:       "Trim visible fat, use low-fat dairy and bake instead of frying.",
}

// RuleGenerator is a deterministic, offline generator. It scales macros by
// Policy and prepends a guidance block to the recipe text.
type RuleGenerator struct{}

// NewRuleGenerator returns a ready RuleGenerator.
func NewRuleGenerator() *RuleGenerator { return &RuleGenerator{} }

func (g *RuleGenerator) Generate(ctx context.Context, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, &Error{Kind: KindNetwork, Err: err}
	}
	factors, ok := Policy[req.Goal]
	if !ok {
		return Result{}, newError(KindConfiguration, "no policy for goal %q", req.Goal)
	}

	// A Caser is stateful; build one per call.
	heading := cases.Title(language.English).String(strings.ReplaceAll(string(req.Goal), "_", " "))
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", heading, guidance[req.Goal])
	if n := strings.TrimSpace(req.Notes); n != "" {
		fmt.Fprintf(&b, "Notes: %s\n", n)
	}
	b.WriteString("\n")
	b.WriteString(req.Recipe.Text)

	macros := req.Recipe.Macros.Scale(factors)
	return Result{
		Status:      StatusCompleted,
		Text:        b.String(),
		Macros:      macros,
		Explanation: explain(req.Recipe.Macros, macros),
	}, nil
}

func explain(before, after domain.Macros) string {
	var parts []string
	add := func(name string, a, b float64) {
		if a != b {
			parts = append(parts, fmt.Sprintf("%s %.2f -> %.2f", name, a, b))
		}
	}
	add("kcal", before.Kcal, after.Kcal)
	add("protein", before.Protein, after.Protein)
	add("carbs", before.Carbs, after.Carbs)
	add("fat", before.Fat, after.Fat)
	if len(parts) == 0 {
		return "No macro changes."
	}
	return "Adjusted " + strings.Join(parts, ", ") + "."
}
