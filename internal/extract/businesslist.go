package extract

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"harvest/scraper/internal/domain"

	"github.com/PuerkitoBio/goquery"
	log "github.com/sirupsen/logrus"
)

var businessListFields = []string{
	"company_name", "company_url", "category", "tagline", "rating",
	"photo_links", "address", "maps_url", "is_verified", "phone_numbers",
	"website", "operating_hours", "extra_information", "company_description", "tags",
}

// BusinessList parses the HTML business directory: category pages list
// companies, company pages carry the profile.
type BusinessList struct {
	baseURL string
}

func NewBusinessList(baseURL string) *BusinessList {
	return &BusinessList{baseURL: strings.TrimRight(baseURL, "/")}
}

func (p *BusinessList) Fields() []string {
	return businessListFields
}

// ExtractSources reads every category of the directory page.
func (p *BusinessList) ExtractSources(ref string, body []byte) ([]domain.Source, error) {
	doc, err := parseHTML(body)
	if err != nil {
		return nil, err
	}

	sources := make([]domain.Source, 0)
	businesses := 0
	doc.Find("ul.icats li").Each(func(_ int, li *goquery.Selection) {
		a := li.Find("a").First()
		href, ok := a.Attr("href")
		if !ok || href == "" {
			return
		}

		name := strings.TrimSpace(a.Contents().First().Text())
		if count, err := strconv.Atoi(strings.ReplaceAll(strings.TrimSpace(a.Find("span").Text()), ",", "")); err == nil {
			businesses += count
		}

		sources = append(sources, domain.Source{
			Name: name,
			URL:  resolve(p.baseURL, ref, href),
		})
	})

	if len(sources) == 0 {
		return nil, domain.ShapeError("no categories in directory %s", ref)
	}

	log.Infof("📦 Directory lists %d categories with %d businesses", len(sources), businesses)
	return sources, nil
}

// ExtractListing reads the companies of one category page and the next page link.
func (p *BusinessList) ExtractListing(src domain.Source, ref string, body []byte) ([]domain.WorkItem, string, error) {
	doc, err := parseHTML(body)
	if err != nil {
		return nil, "", err
	}

	headers := doc.Find("div.company_header")
	if headers.Length() == 0 {
		return nil, "", domain.ShapeError("no companies on listing %s", ref)
	}

	items := make([]domain.WorkItem, 0, headers.Length())
	headers.Each(func(_ int, header *goquery.Selection) {
		a := header.Find("h3 a").First()
		href, ok := a.Attr("href")
		if !ok || href == "" {
			return
		}

		name := strings.TrimSpace(a.Text())
		items = append(items, domain.WorkItem{
			ID:     name,
			Target: resolve(p.baseURL, ref, href),
			Metadata: map[string]any{
				"company_name": name,
				"category":     src.Name,
			},
		})
	})

	next := ""
	if href, ok := doc.Find("a.pages_arrow[rel=next]").First().Attr("href"); ok {
		next = resolve(p.baseURL, ref, href)
	}

	return items, next, nil
}

// ExtractRecords reads one company profile.
func (p *BusinessList) ExtractRecords(item domain.WorkItem, body []byte) ([]domain.Record, error) {
	doc, err := parseHTML(body)
	if err != nil {
		return nil, err
	}

	companyName := doc.Find("div#company_name").First()
	if companyName.Length() == 0 {
		return nil, domain.ShapeError("no company name on %s", item.Target)
	}

	record := domain.Record{
		"company_url":         item.Target,
		"tagline":             textOrNil(doc, "div.tagline"),
		"rating":              p.rating(doc),
		"photo_links":         listOrNil(p.photos(doc)),
		"company_name":        strings.TrimSpace(companyName.Text()),
		"address":             textOrNil(doc, "div#company_address"),
		"maps_url":            attrOrNil(doc, "div.location_links a[rel='noopener']", "href"),
		"is_verified":         doc.Find(`i[aria-label="verified"]`).Length() > 0,
		"phone_numbers":       listOrNil(phoneNumbers(doc)),
		"website":             textOrNil(doc, "div.text.weblinks a"),
		"operating_hours":     mapOrNil(operatingHours(doc)),
		"extra_information":   mapOrNil(extraInformation(doc)),
		"company_description": description(doc),
		"tags":                tags(doc),
	}

	// Replayed ledger items carry no metadata; the ledger identity is the listing name.
	if _, ok := item.Metadata["company_name"]; !ok && item.ID != "" {
		record["company_name"] = item.ID
	}

	return []domain.Record{record}, nil
}

func (p *BusinessList) rating(doc *goquery.Document) any {
	class, ok := doc.Find("span.rate").First().Attr("class")
	if !ok {
		return nil
	}
	for _, c := range strings.Fields(class) {
		if n, found := strings.CutPrefix(c, "rate_"); found {
			if rating, err := strconv.Atoi(n); err == nil {
				return rating
			}
		}
	}
	return nil
}

func (p *BusinessList) photos(doc *goquery.Document) []string {
	var links []string
	doc.Find(`div.photo_href[title="Company Photo"] img`).Each(func(_ int, img *goquery.Selection) {
		if src, ok := img.Attr("src"); ok && src != "" {
			links = append(links, resolve(p.baseURL, "", src))
		}
	})
	return links
}

func phoneNumbers(doc *goquery.Document) []string {
	var numbers []string
	doc.Find(`a[href^="tel:"]`).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		numbers = append(numbers, strings.TrimPrefix(href, "tel:"))
	})
	return numbers
}

func operatingHours(doc *goquery.Document) map[string]string {
	hours := make(map[string]string)
	doc.Find("div#open_hours li").Each(func(_ int, li *goquery.Selection) {
		day := li.Find("small").First()
		if day.Length() == 0 {
			return
		}
		dayText := day.Text()
		name := strings.Trim(dayText, ": ")
		hours[name] = strings.TrimSpace(strings.Replace(li.Text(), dayText, "", 1))
	})
	return hours
}

// extraInformation maps each info label to the text that follows it.
func extraInformation(doc *goquery.Document) map[string]string {
	extra := make(map[string]string)
	doc.Find("div.extra_info div.info").Each(func(_ int, info *goquery.Selection) {
		label := info.Find("div.label").First()
		if label.Length() == 0 {
			return
		}

		seenLabel := false
		value := ""
		info.Contents().EachWithBreak(func(_ int, node *goquery.Selection) bool {
			if node.Is("div.label") {
				seenLabel = true
				return true
			}
			if seenLabel && goquery.NodeName(node) == "#text" {
				value = strings.TrimSpace(node.Text())
				return value == ""
			}
			return true
		})

		if value != "" {
			extra[snakeKey(label.Text())] = value
		}
	})
	return extra
}

// description keeps a two column table as a map, anything else as text.
func description(doc *goquery.Document) any {
	desc := doc.Find("div.text.desc").First()
	if desc.Length() == 0 {
		return nil
	}

	table := desc.Find("table").First()
	if table.Length() == 0 {
		return map[string]any{"description": strings.TrimSpace(desc.Text())}
	}

	rows := make(map[string]string)
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("th, td")
		if cells.Length() == 2 {
			rows[strings.TrimSpace(cells.Eq(0).Text())] = strings.TrimSpace(cells.Eq(1).Text())
		}
	})
	return map[string]any{"description": rows}
}

func tags(doc *goquery.Document) any {
	block := doc.Find("div.tags").First()
	if block.Length() == 0 {
		return nil
	}
	list := make([]string, 0)
	block.Find("a").Each(func(_ int, a *goquery.Selection) {
		list = append(list, strings.TrimSpace(a.Text()))
	})
	return list
}

func parseHTML(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

func textOrNil(doc *goquery.Document, selector string) any {
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return nil
	}
	return strings.TrimSpace(sel.Text())
}

func attrOrNil(doc *goquery.Document, selector, attr string) any {
	val, ok := doc.Find(selector).First().Attr(attr)
	if !ok {
		return nil
	}
	return val
}
