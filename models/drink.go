package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Ingredient is one component of a drink recipe
type Ingredient struct {
	Name  string `json:"name" validate:"required,max=80"`
	Color string `json:"color" validate:"required,max=40"`
	Parts int    `json:"parts" validate:"gte=1,lte=100"`
}

// Recipe is an ordered list of ingredients. It accepts either a JSON array
// or a single ingredient object on input.
type Recipe []Ingredient

// UnmarshalJSON implements json.Unmarshaler
func (r *Recipe) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var single Ingredient
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return err
		}
		*r = Recipe{single}
		return nil
	}

	var list []Ingredient
	if err := json.Unmarshal(trimmed, &list); err != nil {
		return err
	}
	*r = list
	return nil
}

// Drink represents a menu item
type Drink struct {
	ID     int64  `json:"id" db:"id"`
	Title  string `json:"title" db:"title"`
	Recipe Recipe `json:"recipe" db:"recipe"`
}

// TableName returns the table name for the Drink model
func (Drink) TableName() string {
	return "drinks"
}

// NewDrink creates a new Drink instance
func NewDrink(title string, recipe Recipe) *Drink {
	return &Drink{
		Title:  title,
		Recipe: recipe,
	}
}

// ShortIngredient is the public view of an ingredient
type ShortIngredient struct {
	Color string `json:"color"`
	Parts int    `json:"parts"`
}

// ShortDrink is the public representation served without authorization
type ShortDrink struct {
	ID     int64             `json:"id"`
	Title  string            `json:"title"`
	Recipe []ShortIngredient `json:"recipe"`
}

// LongDrink is the full representation including ingredient names
type LongDrink struct {
	ID     int64        `json:"id"`
	Title  string       `json:"title"`
	Recipe []Ingredient `json:"recipe"`
}

// Short returns the view with ingredient colors and parts only
func (d *Drink) Short() ShortDrink {
	recipe := make([]ShortIngredient, 0, len(d.Recipe))
	for _, ing := range d.Recipe {
		recipe = append(recipe, ShortIngredient{Color: ing.Color, Parts: ing.Parts})
	}
	return ShortDrink{ID: d.ID, Title: d.Title, Recipe: recipe}
}

// Long returns the full view
func (d *Drink) Long() LongDrink {
	recipe := make([]Ingredient, len(d.Recipe))
	copy(recipe, d.Recipe)
	return LongDrink{ID: d.ID, Title: d.Title, Recipe: recipe}
}

// EncodeRecipe serializes a recipe for the recipe TEXT column
func EncodeRecipe(r Recipe) (string, error) {
	if r == nil {
		r = Recipe{}
	}
	data, err := json.Marshal([]Ingredient(r))
	if err != nil {
		return "", fmt.Errorf("failed to encode recipe: %w", err)
	}
	return string(data), nil
}

// DecodeRecipe parses the recipe TEXT column
func DecodeRecipe(s string) (Recipe, error) {
	if s == "" {
		return nil, errors.New("recipe is empty")
	}
	var r Recipe
	if err := json.Unmarshal([]byte(s), &r); err != nil {
		return nil, fmt.Errorf("failed to decode recipe: %w", err)
	}
	return r, nil
}

// SeedDrinks are the rows written when the schema is reset
func SeedDrinks() []*Drink {
	return []*Drink{
		NewDrink("water", Recipe{{Name: "water", Color: "blue", Parts: 1}}),
	}
}
