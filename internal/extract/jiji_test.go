package extract

import (
	"encoding/json"
	"testing"

	"harvest/scraper/internal/domain"
	"harvest/scraper/internal/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jijiListingJSON = `{"adverts_list": {"total_pages": 3, "adverts": [
  {"guid": "abc123"}, {"title": "no guid"}, {"guid": "def456"}
]}}`

const jijiItemJSON = `{
  "advert": {
    "category_id": 29,
    "category_slug": "houses-apartments-for-rent",
    "attrs": [{"name": "Number of Bedrooms", "value": "2"}, {"name": " ", "value": "x"}],
    "guid": "abc123",
    "id": 100200300400,
    "images": [{"url": "https://pictures.example.com/1.jpg"}, {"url": ""}],
    "price": {"value": 45000, "period": "month"},
    "title": "2 bedroom apartment"
  },
  "seller": {"name": "Jane", "id": 77, "phone": "hidden"}
}`

func TestJijiExtractListing(t *testing.T) {
	t.Parallel()

	p := NewJiji("https://jiji.co.ke")
	src := domain.Source{Name: "rentals", URL: "https://jiji.co.ke/api_web/v1/listing?slug=houses-apartments-for-rent&page=1"}

	items, next, err := p.ExtractListing(src, src.URL, []byte(jijiListingJSON))
	require.NoError(t, err)
	assert.Equal(t, "https://jiji.co.ke/api_web/v1/listing?page=2&slug=houses-apartments-for-rent", next)
	require.Len(t, items, 2)
	assert.Equal(t, domain.WorkItem{
		ID:       "abc123",
		Target:   "https://jiji.co.ke/api_web/v1/item/abc123",
		Metadata: map[string]any{"slug": "houses-apartments-for-rent"},
	}, items[0])

	_, next, err = p.ExtractListing(src, "https://jiji.co.ke/api_web/v1/listing?slug=houses-apartments-for-rent&page=3", []byte(jijiListingJSON))
	require.NoError(t, err)
	assert.Empty(t, next)
}

func TestJijiExtractListingRejectsUnexpectedPayload(t *testing.T) {
	t.Parallel()

	p := NewJiji("https://jiji.co.ke")
	src := domain.Source{Name: "rentals", URL: "https://jiji.co.ke/api_web/v1/listing?slug=x"}

	for _, body := range []string{`<html>blocked</html>`, `{"status": "ok"}`} {
		_, _, err := p.ExtractListing(src, src.URL, []byte(body))
		assert.ErrorIs(t, err, domain.ErrUnexpectedShape, body)
	}
}

func TestJijiExtractRecords(t *testing.T) {
	t.Parallel()

	p := NewJiji("https://jiji.co.ke")

	records, err := p.ExtractRecords(domain.WorkItem{ID: "abc123"}, []byte(jijiItemJSON))
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, json.Number("100200300400"), r["id"])
	assert.Equal(t, "abc123", r["guid"])
	assert.Equal(t, map[string]any{"number_of_bedrooms": "2"}, r["attrs"])
	assert.Equal(t, []string{"https://pictures.example.com/1.jpg"}, r["images"])
	assert.Equal(t, json.Number("45000"), r["price_value"])
	assert.Equal(t, "month", r["price_period"])
	assert.Nil(t, r["description"])

	seller, ok := r["seller"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, seller, len(jijiSellerFields))
	assert.Equal(t, "Jane", seller["name"])
	assert.Nil(t, seller["page_url"])
	assert.NotContains(t, seller, "phone")

	_, err = p.ExtractRecords(domain.WorkItem{ID: "gone"}, []byte(`{"seller": {}}`))
	assert.ErrorIs(t, err, domain.ErrUnexpectedShape)
}

func TestJijiRequestHeaders(t *testing.T) {
	t.Parallel()

	var p pipeline.HeaderProvider = NewJiji("https://jiji.co.ke")

	headers := p.RequestHeaders(domain.WorkItem{ID: "abc123", Metadata: map[string]any{"slug": "rentals"}})
	assert.Equal(t, "https://jiji.co.ke/rentals/abc123.html", headers["Referer"])

	headers = p.RequestHeaders(domain.WorkItem{ID: "abc123"})
	assert.Equal(t, "https://jiji.co.ke/", headers["Referer"])
}
