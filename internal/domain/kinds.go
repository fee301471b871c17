package domain

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownKind = errors.New("unknown value")

type Category string

const (
	CategoryCake   Category = "Cake"
	CategoryBread  Category = "Bread"
	CategoryCookie Category = "Cookie"
	CategoryPastry Category = "Pastry"
	CategoryPie    Category = "Pie"
	CategoryDonut  Category = "Donut"
	CategoryMuffin Category = "Muffin"
	CategoryOther  Category = "Other"
)

var Categories = []Category{
	CategoryCake, CategoryBread, CategoryCookie, CategoryPastry,
	CategoryPie, CategoryDonut, CategoryMuffin, CategoryOther,
}

// ParseCategory matches case-insensitively and returns the canonical spelling.
func ParseCategory(raw string) (Category, error) {
	trimmed := strings.TrimSpace(raw)
	for _, c := range Categories {
		if strings.EqualFold(trimmed, string(c)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("category %q: %w", raw, ErrUnknownKind)
}

type DiscountKind string

const (
	DiscountNone   DiscountKind = "none"
	DiscountSenior DiscountKind = "senior"
	DiscountPWD    DiscountKind = "pwd"
)

// ParseDiscountKind treats an empty selection as DiscountNone.
func ParseDiscountKind(raw string) (DiscountKind, error) {
	switch DiscountKind(strings.ToLower(strings.TrimSpace(raw))) {
	case "", DiscountNone:
		return DiscountNone, nil
	case DiscountSenior:
		return DiscountSenior, nil
	case DiscountPWD:
		return DiscountPWD, nil
	}
	return "", fmt.Errorf("discount %q: %w", raw, ErrUnknownKind)
}

func IsValidRole(role string) bool {
	return role == RoleAdmin || role == RoleStaff
}
