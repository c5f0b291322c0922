package extract

import (
	"testing"

	"harvest/scraper/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const directoryHTML = `<html><body>
<ul class="icats">
  <li><a href="/category/hotels">Hotels <span>1,204</span></a></li>
  <li><a href="/category/restaurants">Restaurants <span>87</span></a></li>
  <li><span>no link</span></li>
</ul>
</body></html>`

const listingHTML = `<html><body>
<div class="company_header"><h3><a href="/company/1/acme-ltd">Acme Ltd</a></h3></div>
<div class="company_header"><h3><a href="https://www.businesslist.co.ke/company/2/beta">Beta Co</a></h3></div>
<div class="company_header"><h3>No link</h3></div>
<div class="pages"><a class="pages_arrow" rel="next" href="/category/hotels/2">Next</a></div>
</body></html>`

const profileHTML = `<html><body>
<div id="company_name">Acme Ltd</div>
<div class="tagline"> Best in town </div>
<span class="rate rate_4"></span>
<div class="photo_href" title="Company Photo"><img src="/img/1.jpg"><img src="https://cdn.example.com/2.jpg"></div>
<div id="company_address">Moi Avenue, Nairobi</div>
<div class="location_links"><a rel="noopener" href="https://maps.example.com/acme">Map</a></div>
<i aria-label="verified"></i>
<a href="tel:+254700000001">Call</a><a href="tel:+254700000002">Call</a>
<div class="text weblinks"><a href="https://acme.example.com">acme.example.com</a></div>
<div id="open_hours"><ul>
  <li><small>Monday:</small> 8:00 - 17:00</li>
  <li><small>Sunday:</small> closed</li>
</ul></div>
<div class="extra_info">
  <div class="info"><div class="label">Year Established</div> 1998</div>
  <div class="info"><div class="label">Employees</div> 20</div>
</div>
<div class="text desc"><table>
  <tr><th>Services</th><td>Plumbing</td></tr>
  <tr><td>single</td></tr>
</table></div>
<div class="tags"><a>plumbing</a><a> repairs </a></div>
</body></html>`

func TestBusinessListExtractSources(t *testing.T) {
	t.Parallel()

	p := NewBusinessList("https://www.businesslist.co.ke/")

	sources, err := p.ExtractSources("https://www.businesslist.co.ke/browse-business-directory", []byte(directoryHTML))
	require.NoError(t, err)
	assert.Equal(t, []domain.Source{
		{Name: "Hotels", URL: "https://www.businesslist.co.ke/category/hotels"},
		{Name: "Restaurants", URL: "https://www.businesslist.co.ke/category/restaurants"},
	}, sources)

	_, err = p.ExtractSources("https://www.businesslist.co.ke/", []byte("<html></html>"))
	assert.ErrorIs(t, err, domain.ErrUnexpectedShape)
}

func TestBusinessListExtractListing(t *testing.T) {
	t.Parallel()

	p := NewBusinessList("https://www.businesslist.co.ke")
	src := domain.Source{Name: "Hotels", URL: "https://www.businesslist.co.ke/category/hotels"}

	items, next, err := p.ExtractListing(src, src.URL, []byte(listingHTML))
	require.NoError(t, err)
	assert.Equal(t, "https://www.businesslist.co.ke/category/hotels/2", next)
	require.Len(t, items, 2)
	assert.Equal(t, domain.WorkItem{
		ID:       "Acme Ltd",
		Target:   "https://www.businesslist.co.ke/company/1/acme-ltd",
		Metadata: map[string]any{"company_name": "Acme Ltd", "category": "Hotels"},
	}, items[0])
	assert.Equal(t, "https://www.businesslist.co.ke/company/2/beta", items[1].Target)

	items, next, err = p.ExtractListing(src, src.URL+"/9", []byte("<html><body>We are down for maintenance</body></html>"))
	assert.ErrorIs(t, err, domain.ErrUnexpectedShape)
	assert.ErrorContains(t, err, src.URL+"/9")
	assert.Nil(t, items)
	assert.Empty(t, next)
}

func TestBusinessListExtractListingSkipsHeadersWithoutLink(t *testing.T) {
	t.Parallel()

	p := NewBusinessList("https://www.businesslist.co.ke")
	src := domain.Source{Name: "Hotels", URL: "https://www.businesslist.co.ke/category/hotels"}
	body := `<html><body><div class="company_header"><h3>Unlisted</h3></div></body></html>`

	items, next, err := p.ExtractListing(src, src.URL, []byte(body))
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Empty(t, next)
}

func TestBusinessListExtractRecords(t *testing.T) {
	t.Parallel()

	p := NewBusinessList("https://www.businesslist.co.ke")
	item := domain.WorkItem{ID: "Acme Ltd", Target: "https://www.businesslist.co.ke/company/1/acme-ltd"}

	records, err := p.ExtractRecords(item, []byte(profileHTML))
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, item.Target, r["company_url"])
	assert.Equal(t, "Acme Ltd", r["company_name"])
	assert.Equal(t, "Best in town", r["tagline"])
	assert.Equal(t, 4, r["rating"])
	assert.Equal(t, []string{
		"https://www.businesslist.co.ke/img/1.jpg",
		"https://cdn.example.com/2.jpg",
	}, r["photo_links"])
	assert.Equal(t, "Moi Avenue, Nairobi", r["address"])
	assert.Equal(t, "https://maps.example.com/acme", r["maps_url"])
	assert.Equal(t, true, r["is_verified"])
	assert.Equal(t, []string{"+254700000001", "+254700000002"}, r["phone_numbers"])
	assert.Equal(t, "acme.example.com", r["website"])
	assert.Equal(t, map[string]string{"Monday": "8:00 - 17:00", "Sunday": "closed"}, r["operating_hours"])
	assert.Equal(t, map[string]string{"year_established": "1998", "employees": "20"}, r["extra_information"])
	assert.Equal(t, map[string]any{"description": map[string]string{"Services": "Plumbing"}}, r["company_description"])
	assert.Equal(t, []string{"plumbing", "repairs"}, r["tags"])
}

func TestBusinessListExtractRecordsSparseProfile(t *testing.T) {
	t.Parallel()

	p := NewBusinessList("https://www.businesslist.co.ke")
	body := `<html><body><div id="company_name">Solo</div><div class="text desc">Just text</div></body></html>`

	records, err := p.ExtractRecords(domain.WorkItem{ID: "Solo", Target: "https://x/solo"}, []byte(body))
	require.NoError(t, err)

	r := records[0]
	for _, field := range []string{"tagline", "rating", "photo_links", "phone_numbers", "operating_hours", "extra_information", "tags"} {
		assert.Nil(t, r[field], field)
	}
	assert.Equal(t, false, r["is_verified"])
	assert.Equal(t, map[string]any{"description": "Just text"}, r["company_description"])
}

func TestBusinessListExtractRecordsNamesReplayedItems(t *testing.T) {
	t.Parallel()

	p := NewBusinessList("https://www.businesslist.co.ke")
	body := `<html><body><div id="company_name">ACME LIMITED (Nairobi Branch)</div></body></html>`

	t.Run("ledger item without metadata keeps the listing name", func(t *testing.T) {
		t.Parallel()

		item := domain.WorkItem{ID: "Acme Ltd", Target: "https://www.businesslist.co.ke/company/1/acme-ltd"}
		records, err := p.ExtractRecords(item, []byte(body))
		require.NoError(t, err)
		assert.Equal(t, "Acme Ltd", records[0]["company_name"])
	})

	t.Run("listing metadata leaves the profile name to the overlay", func(t *testing.T) {
		t.Parallel()

		item := domain.WorkItem{
			ID:       "Acme Ltd",
			Target:   "https://www.businesslist.co.ke/company/1/acme-ltd",
			Metadata: map[string]any{"company_name": "Acme Ltd", "category": "Hotels"},
		}
		records, err := p.ExtractRecords(item, []byte(body))
		require.NoError(t, err)
		assert.Equal(t, "ACME LIMITED (Nairobi Branch)", records[0]["company_name"])
	})

	t.Run("item without identity uses the profile name", func(t *testing.T) {
		t.Parallel()

		records, err := p.ExtractRecords(domain.WorkItem{Target: "https://x/acme"}, []byte(body))
		require.NoError(t, err)
		assert.Equal(t, "ACME LIMITED (Nairobi Branch)", records[0]["company_name"])
	})
}

func TestBusinessListExtractRecordsRejectsUnexpectedPage(t *testing.T) {
	t.Parallel()

	p := NewBusinessList("https://www.businesslist.co.ke")

	_, err := p.ExtractRecords(domain.WorkItem{ID: "Gone", Target: "https://x/gone"}, []byte("<html><body>Not found</body></html>"))
	assert.ErrorIs(t, err, domain.ErrUnexpectedShape)
}

func TestForSite(t *testing.T) {
	t.Parallel()

	site, err := ForSite("BusinessList", "https://www.businesslist.co.ke")
	require.NoError(t, err)
	assert.Equal(t, businessListFields, site.Fields())

	site, err = ForSite("jiji", "https://jiji.co.ke")
	require.NoError(t, err)
	assert.Nil(t, site.Fields())

	_, err = ForSite("nowhere", "")
	assert.Error(t, err)
}
