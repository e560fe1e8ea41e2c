package services

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"sierra-preorder/models"
	"sierra-preorder/store"
)

// CategoryAll is the pseudo-category that disables the category filter.
const CategoryAll = "All"

// Menu is the menu catalog service.
type Menu struct {
	store  store.Gateway
	images ImageStore
}

func NewMenu(gw store.Gateway, images ImageStore) *Menu {
	return &Menu{store: gw, images: images}
}

// MenuFilter combines a category and a text search with AND.
type MenuFilter struct {
	Category string
	Search   string
}

// MatchesMenuFilter reports whether item passes f. Search is a case-insensitive substring
// match over name and description.
func MatchesMenuFilter(item models.MenuItem, f MenuFilter) bool {
	if f.Category != "" && f.Category != CategoryAll && item.Category != f.Category {
		return false
	}
	q := strings.ToLower(strings.TrimSpace(f.Search))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(item.Name), q) ||
		strings.Contains(strings.ToLower(item.Description), q)
}

// FilterMenu applies f to an already loaded menu, keeping order.
func FilterMenu(items []models.MenuItem, f MenuFilter) []models.MenuItem {
	out := make([]models.MenuItem, 0, len(items))
	for _, it := range items {
		if MatchesMenuFilter(it, f) {
			out = append(out, it)
		}
	}
	return out
}

// List returns matching items ordered by category, then name.
func (m *Menu) List(ctx context.Context, f MenuFilter) ([]models.MenuItem, error) {
	q := store.Query{Sort: []store.Sort{store.Asc("category"), store.Asc("name")}}
	if f.Category != "" && f.Category != CategoryAll {
		if !models.IsCategory(f.Category) {
			return nil, invalid("category", fmt.Sprintf("Unknown category %q.", f.Category))
		}
		q.Filters = append(q.Filters, store.Eq("category", f.Category))
	}
	var items []models.MenuItem
	if err := m.store.List(ctx, store.TableMenuItems, q, &items); err != nil {
		return nil, err
	}
	return FilterMenu(items, MenuFilter{Search: f.Search}), nil
}

func (m *Menu) Get(ctx context.Context, id string) (*models.MenuItem, error) {
	var items []models.MenuItem
	q := store.Query{Filters: []store.Filter{store.Eq("id", id)}, Limit: 1}
	if err := m.store.List(ctx, store.TableMenuItems, q, &items); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("menu item %s: %w", id, ErrNotFound)
	}
	return &items[0], nil
}

// MenuItemInput is a menu item as typed by a manager. Price is text so that
// "12.50", "12.5" and "12" are all accepted.
type MenuItemInput struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	Price        string `json:"price"`
	Category     string `json:"category"`
	ImageURL     string `json:"image_url"`
	IsBestseller bool   `json:"is_bestseller"`
	IsVegetarian bool   `json:"is_vegetarian"`
	IsSpicy      bool   `json:"is_spicy"`
}

// Item validates in and converts it to a MenuItem without id or rating.
func (in MenuItemInput) Item() (models.MenuItem, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.MenuItem{}, invalid("name", "Name is required.")
	}
	desc := strings.TrimSpace(in.Description)
	if desc == "" {
		return models.MenuItem{}, invalid("description", "Description is required.")
	}
	rawPrice := strings.TrimSpace(in.Price)
	if rawPrice == "" {
		return models.MenuItem{}, invalid("price", "Price is required.")
	}
	price, err := decimal.NewFromString(rawPrice)
	if err != nil {
		return models.MenuItem{}, invalid("price", "Price must be a number.")
	}
	if price.IsNegative() {
		return models.MenuItem{}, invalid("price", "Price cannot be negative.")
	}
	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = models.CategoryStarters
	}
	if !models.IsCategory(category) {
		return models.MenuItem{}, invalid("category", fmt.Sprintf("Unknown category %q.", category))
	}
	return models.MenuItem{
		Name:         name,
		Description:  desc,
		Price:        price,
		Category:     category,
		ImageURL:     strings.TrimSpace(in.ImageURL),
		IsBestseller: in.IsBestseller,
		IsVegetarian: in.IsVegetarian,
		IsSpicy:      in.IsSpicy,
	}, nil
}

func (m *Menu) Create(ctx context.Context, in MenuItemInput) (*models.MenuItem, error) {
	item, err := in.Item()
	if err != nil {
		return nil, err
	}
	var created models.MenuItem
	if err := m.store.Insert(ctx, store.TableMenuItems, item, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// Update replaces every editable field of item id. Rating is left alone, and so is the
// image when in carries none.
func (m *Menu) Update(ctx context.Context, id string, in MenuItemInput) (*models.MenuItem, error) {
	item, err := in.Item()
	if err != nil {
		return nil, err
	}
	patch := map[string]any{
		"name":          item.Name,
		"description":   item.Description,
		"price":         item.Price,
		"category":      item.Category,
		"is_bestseller": item.IsBestseller,
		"is_vegetarian": item.IsVegetarian,
		"is_spicy":      item.IsSpicy,
	}
	if item.ImageURL != "" {
		patch["image_url"] = item.ImageURL
	}
	var updated models.MenuItem
	if err := m.store.Update(ctx, store.TableMenuItems, id, patch, &updated); err != nil {
		return nil, notFound(err)
	}
	return &updated, nil
}

func (m *Menu) Delete(ctx context.Context, id string) error {
	return notFound(m.store.Delete(ctx, store.TableMenuItems, id))
}

func (m *Menu) SetImage(ctx context.Context, id, imageURL string) (*models.MenuItem, error) {
	var updated models.MenuItem
	if err := m.store.Update(ctx, store.TableMenuItems, id, map[string]string{"image_url": imageURL}, &updated); err != nil {
		return nil, notFound(err)
	}
	return &updated, nil
}

// UploadImage stores the image and points the item at it. The item must exist.
func (m *Menu) UploadImage(ctx context.Context, id, filename, contentType string, r io.Reader, size int64) (*models.MenuItem, error) {
	if m.images == nil {
		return nil, invalid("image", "Image uploads are not configured.")
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, invalid("image", "Please upload an image file.")
	}
	if _, err := m.Get(ctx, id); err != nil {
		return nil, err
	}
	url, err := m.images.Put(ctx, id, filename, contentType, r, size)
	if err != nil {
		return nil, fmt.Errorf("upload image: %w", err)
	}
	return m.SetImage(ctx, id, url)
}
