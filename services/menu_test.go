package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"sierra-preorder/models"
	"sierra-preorder/store"
)

func TestMenuItemInputValidation(t *testing.T) {
	base := MenuItemInput{Name: "Naan", Description: "Tandoor bread", Price: "2.50", Category: models.CategoryBreads}
	tests := []struct {
		name  string
		mod   func(*MenuItemInput)
		field string
	}{
		{"ok", func(*MenuItemInput) {}, ""},
		{"integer price", func(in *MenuItemInput) { in.Price = "3" }, ""},
		{"zero price", func(in *MenuItemInput) { in.Price = "0" }, ""},
		{"missing name", func(in *MenuItemInput) { in.Name = " " }, "name"},
		{"missing description", func(in *MenuItemInput) { in.Description = "" }, "description"},
		{"missing price", func(in *MenuItemInput) { in.Price = "" }, "price"},
		{"text price", func(in *MenuItemInput) { in.Price = "cheap" }, "price"},
		{"negative price", func(in *MenuItemInput) { in.Price = "-1.00" }, "price"},
		{"unknown category", func(in *MenuItemInput) { in.Category = "Pizza" }, "category"},
	}
	for _, tt := range tests {
		in := base
		tt.mod(&in)
		_, err := in.Item()
		if tt.field == "" {
			if err != nil {
				t.Errorf("%s: unexpected error %v", tt.name, err)
			}
			continue
		}
		var ve *ValidationError
		if !errors.As(err, &ve) || ve.Field != tt.field {
			t.Errorf("%s: err = %v, want ValidationError on %s", tt.name, err, tt.field)
		}
	}

	in := base
	in.Category = ""
	item, err := in.Item()
	if err != nil || item.Category != models.CategoryStarters {
		t.Errorf("empty category: got %q, %v; want Starters", item.Category, err)
	}
}

func seedCatalog(t *testing.T, m *Menu) map[string]*models.MenuItem {
	t.Helper()
	inputs := []MenuItemInput{
		{Name: "Samosa", Description: "Crispy pastry with spiced potato", Price: "5.99", Category: models.CategoryStarters, IsVegetarian: true},
		{Name: "Butter Chicken", Description: "Creamy tomato curry", Price: "16.99", Category: models.CategoryMains, IsBestseller: true},
		{Name: "Chicken 65", Description: "Spicy fried chicken", Price: "8.99", Category: models.CategoryStarters, IsSpicy: true},
		{Name: "Gulab Jamun", Description: "Milk dumplings in syrup", Price: "4.99", Category: models.CategoryDesserts},
	}
	out := make(map[string]*models.MenuItem)
	for _, in := range inputs {
		item, err := m.Create(context.Background(), in)
		if err != nil {
			t.Fatalf("Create(%s): %v", in.Name, err)
		}
		out[item.Name] = item
	}
	return out
}

func names(items []models.MenuItem) string {
	var ns []string
	for _, it := range items {
		ns = append(ns, it.Name)
	}
	return strings.Join(ns, ",")
}

func TestMenuList(t *testing.T) {
	m := NewMenu(store.NewMemory(), nil)
	seedCatalog(t, m)
	tests := []struct {
		name   string
		filter MenuFilter
		want   string
	}{
		{"all ordered by category then name", MenuFilter{}, "Gulab Jamun,Butter Chicken,Chicken 65,Samosa"},
		{"All keyword", MenuFilter{Category: CategoryAll}, "Gulab Jamun,Butter Chicken,Chicken 65,Samosa"},
		{"category", MenuFilter{Category: models.CategoryStarters}, "Chicken 65,Samosa"},
		{"search name", MenuFilter{Search: "CHICKEN"}, "Butter Chicken,Chicken 65"},
		{"search description", MenuFilter{Search: "potato"}, "Samosa"},
		{"category and search", MenuFilter{Category: models.CategoryStarters, Search: "chicken"}, "Chicken 65"},
		{"no match", MenuFilter{Category: models.CategoryBreads}, ""},
	}
	for _, tt := range tests {
		got, err := m.List(context.Background(), tt.filter)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if names(got) != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, names(got), tt.want)
		}
	}
	if _, err := m.List(context.Background(), MenuFilter{Category: "Pizza"}); err == nil {
		t.Error("unknown category: want error")
	}
}

func TestMenuUpdateKeepsImageAndRating(t *testing.T) {
	gw := store.NewMemory()
	m := NewMenu(gw, nil)
	items := seedCatalog(t, m)
	ctx := context.Background()
	id := items["Samosa"].ID

	if err := gw.Update(ctx, store.TableMenuItems, id, map[string]any{"rating": 4.5}, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := m.SetImage(ctx, id, "http://img/samosa.jpg"); err != nil {
		t.Fatal(err)
	}
	updated, err := m.Update(ctx, id, MenuItemInput{Name: "Samosa (2 pcs)", Description: "Crispy", Price: "6.49"})
	if err != nil {
		t.Fatal(err)
	}
	if updated.ImageURL != "http://img/samosa.jpg" {
		t.Errorf("image_url = %q, want preserved", updated.ImageURL)
	}
	if updated.Rating == nil || *updated.Rating != 4.5 {
		t.Errorf("rating = %v, want 4.5", updated.Rating)
	}
	if updated.Name != "Samosa (2 pcs)" || !updated.Price.Equal(dec("6.49")) {
		t.Errorf("updated = %+v", updated)
	}
	if updated.IsVegetarian {
		t.Error("flags should be replaced by the input")
	}

	if _, err := m.Update(ctx, "missing", MenuItemInput{Name: "x", Description: "y", Price: "1"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("update missing: err = %v, want ErrNotFound", err)
	}
}

func TestMenuDelete(t *testing.T) {
	m := NewMenu(store.NewMemory(), nil)
	items := seedCatalog(t, m)
	ctx := context.Background()
	if err := m.Delete(ctx, items["Gulab Jamun"].ID); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Get(ctx, items["Gulab Jamun"].ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("get deleted: err = %v, want ErrNotFound", err)
	}
	if err := m.Delete(ctx, items["Gulab Jamun"].ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("delete twice: err = %v, want ErrNotFound", err)
	}
}

type fakeImages struct {
	got []byte
}

func (f *fakeImages) Put(ctx context.Context, itemID, filename, contentType string, r io.Reader, size int64) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.got = b
	return "http://cdn/" + ImageObjectName(itemID, filename), nil
}

func TestMenuUploadImage(t *testing.T) {
	imgs := &fakeImages{}
	m := NewMenu(store.NewMemory(), imgs)
	items := seedCatalog(t, m)
	ctx := context.Background()
	id := items["Samosa"].ID

	item, err := m.UploadImage(ctx, id, "Samosa.JPG", "image/jpeg", strings.NewReader("jpegdata"), 8)
	if err != nil {
		t.Fatalf("UploadImage: %v", err)
	}
	if !strings.HasPrefix(item.ImageURL, "http://cdn/menu/"+id+"/") || !strings.HasSuffix(item.ImageURL, ".jpg") {
		t.Errorf("image_url = %s", item.ImageURL)
	}
	if string(imgs.got) != "jpegdata" {
		t.Errorf("uploaded %q", imgs.got)
	}

	if _, err := m.UploadImage(ctx, id, "notes.txt", "text/plain", strings.NewReader("x"), 1); err == nil {
		t.Error("non-image upload: want error")
	}
	if _, err := m.UploadImage(ctx, "missing", "a.png", "image/png", strings.NewReader("x"), 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing item: err = %v, want ErrNotFound", err)
	}
	if _, err := NewMenu(store.NewMemory(), nil).UploadImage(ctx, id, "a.png", "image/png", strings.NewReader("x"), 1); err == nil {
		t.Error("no image store: want error")
	}
}
