package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"harvest/scraper/internal/domain"
)

type jijiListing struct {
	AdvertsList *struct {
		TotalPages int `json:"total_pages"`
		Adverts    []struct {
			GUID string `json:"guid"`
		} `json:"adverts"`
	} `json:"adverts_list"`
}

type jijiItem struct {
	Advert *jijiAdvert    `json:"advert"`
	Seller map[string]any `json:"seller"`
}

type jijiAdvert struct {
	CategoryID   any        `json:"category_id"`
	CategorySlug any        `json:"category_slug"`
	Attrs        []jijiAttr `json:"attrs"`
	CountViews   any        `json:"count_views"`
	DateCreated  any        `json:"date_created"`
	DateModified any        `json:"date_modified"`
	Description  any        `json:"description"`
	FavCount     any        `json:"fav_count"`
	GUID         any        `json:"guid"`
	ID           any        `json:"id"`
	Images       []struct {
		URL string `json:"url"`
	} `json:"images"`
	IsActive       any `json:"is_active"`
	IsClosed       any `json:"is_closed"`
	IsInModeration any `json:"is_in_moderation"`
	Price          struct {
		Value  any `json:"value"`
		Period any `json:"period"`
	} `json:"price"`
	RegionName any `json:"region_name"`
	RegionSlug any `json:"region_slug"`
	RegionText any `json:"region_text"`
	Title      any `json:"title"`
}

type jijiAttr struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

var jijiSellerFields = []string{
	"advert_id", "adverts_count", "date_created", "feedback_count", "guid",
	"id", "image_url", "name", "page_url", "status",
}

// Jiji parses the classifieds JSON API: listing pages are numbered by a page
// query parameter, each advert is fetched by GUID.
type Jiji struct {
	baseURL string
}

func NewJiji(baseURL string) *Jiji {
	return &Jiji{baseURL: strings.TrimRight(baseURL, "/")}
}

// Fields is nil: advert columns are derived from the first record.
func (p *Jiji) Fields() []string {
	return nil
}

// ExtractListing reads the advert GUIDs of one listing page. The next reference
// is the same URL with the page parameter advanced until total_pages.
func (p *Jiji) ExtractListing(src domain.Source, ref string, body []byte) ([]domain.WorkItem, string, error) {
	var listing jijiListing
	if err := decodeJSON(body, &listing); err != nil {
		return nil, "", domain.ShapeError("listing %s is not JSON: %v", ref, err)
	}
	if listing.AdvertsList == nil {
		return nil, "", domain.ShapeError("listing %s has no adverts_list", ref)
	}

	refURL, err := url.Parse(ref)
	if err != nil {
		return nil, "", fmt.Errorf("invalid listing reference %q: %w", ref, err)
	}
	query := refURL.Query()
	slug := query.Get("slug")

	items := make([]domain.WorkItem, 0, len(listing.AdvertsList.Adverts))
	for _, advert := range listing.AdvertsList.Adverts {
		if advert.GUID == "" {
			continue
		}
		items = append(items, domain.WorkItem{
			ID:       advert.GUID,
			Target:   p.baseURL + "/api_web/v1/item/" + url.PathEscape(advert.GUID),
			Metadata: map[string]any{"slug": slug},
		})
	}

	page := 1
	if n, err := strconv.Atoi(query.Get("page")); err == nil && n > 0 {
		page = n
	}
	if page >= listing.AdvertsList.TotalPages {
		return items, "", nil
	}

	query.Set("page", strconv.Itoa(page+1))
	refURL.RawQuery = query.Encode()
	return items, refURL.String(), nil
}

// ExtractRecords flattens one advert and its seller.
func (p *Jiji) ExtractRecords(item domain.WorkItem, body []byte) ([]domain.Record, error) {
	var payload jijiItem
	if err := decodeJSON(body, &payload); err != nil {
		return nil, domain.ShapeError("advert %s is not JSON: %v", item.ID, err)
	}
	ad := payload.Advert
	if ad == nil {
		return nil, domain.ShapeError("advert %s has no advert object", item.ID)
	}

	attrs := make(map[string]any, len(ad.Attrs))
	for _, attr := range ad.Attrs {
		if key := snakeKey(attr.Name); key != "" {
			attrs[key] = attr.Value
		}
	}

	images := make([]string, 0, len(ad.Images))
	for _, img := range ad.Images {
		if img.URL != "" {
			images = append(images, img.URL)
		}
	}

	seller := make(map[string]any, len(jijiSellerFields))
	for _, field := range jijiSellerFields {
		seller[field] = payload.Seller[field]
	}

	record := domain.Record{
		"category_id":      ad.CategoryID,
		"category_slug":    ad.CategorySlug,
		"attrs":            attrs,
		"count_views":      ad.CountViews,
		"date_created":     ad.DateCreated,
		"date_modified":    ad.DateModified,
		"description":      ad.Description,
		"fav_count":        ad.FavCount,
		"guid":             ad.GUID,
		"id":               ad.ID,
		"images":           images,
		"is_active":        ad.IsActive,
		"is_closed":        ad.IsClosed,
		"is_in_moderation": ad.IsInModeration,
		"price_value":      ad.Price.Value,
		"price_period":     ad.Price.Period,
		"region_name":      ad.RegionName,
		"region_slug":      ad.RegionSlug,
		"region_text":      ad.RegionText,
		"title":            ad.Title,
		"seller":           seller,
	}

	return []domain.Record{record}, nil
}

// RequestHeaders sets the advert page as Referer. Items replayed from a ledger
// carry no slug and fall back to the site root.
func (p *Jiji) RequestHeaders(item domain.WorkItem) map[string]string {
	referer := p.baseURL + "/"
	if slug, ok := item.Metadata["slug"].(string); ok && slug != "" {
		referer = fmt.Sprintf("%s/%s/%s.html", p.baseURL, slug, item.ID)
	}
	return map[string]string{"Referer": referer}
}

// decodeJSON keeps numbers as json.Number so large IDs survive unchanged.
func decodeJSON(body []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	return dec.Decode(v)
}
