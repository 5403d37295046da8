package report

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Namespaces declared on the xbrl root.
const (
	NamespaceInstance = "http://www.xbrl.org/2003/instance"
	NamespaceXSI      = "http://www.w3.org/2001/XMLSchema-instance"
	NamespaceLink     = "http://www.xbrl.org/2003/linkbase"
	NamespaceXLink    = "http://www.w3.org/1999/xlink"
	NamespaceCSRD     = "http://eba.europa.eu/xbrl/csrd"
	NamespaceISO4217  = "http://www.xbrl.org/2003/iso4217"

	schemaLocation = NamespaceInstance + " http://www.xbrl.org/2003/xbrl-instance-2003-12-31.xsd"
	taxonomyHref   = "https://eba.europa.eu/xbrl/csrd/csrd-2024-12-31.xsd"
	leiScheme      = "http://standards.iso.org/iso/17442"
	contextID      = "entity-context"
)

// Fact tags.
const (
	TagScope1      = "csrd:Scope1GHGEmissions"
	TagScope2      = "csrd:Scope2GHGEmissions"
	TagScope3      = "csrd:Scope3GHGEmissions"
	TagTotal       = "csrd:TotalGHGEmissions"
	TagEntityName  = "csrd:EntityName"
	TagMethodology = "csrd:GHGAccountingMethodology"
	TagFactors     = "csrd:EmissionFactorsSource"
	TagCalculation = "csrd:CalculationMethod"
	TagCategory    = "csrd:EmissionCategoryBreakdown"
	TagGenerated   = "csrd:ReportGenerationDate"
	TagTool        = "csrd:ReportingTool"
)

// Element is a generic XML node. Names carry their prefix verbatim.
type Element struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Value    string     `xml:",chardata"`
	Children []*Element `xml:",any"`
}

func newElement(name, value string, attrs ...string) *Element {
	e := &Element{XMLName: xml.Name{Local: name}, Value: value}
	for i := 0; i+1 < len(attrs); i += 2 {
		e.Attrs = append(e.Attrs, xml.Attr{Name: xml.Name{Local: attrs[i]}, Value: attrs[i+1]})
	}
	return e
}

func (e *Element) add(children ...*Element) *Element {
	e.Children = append(e.Children, children...)
	return e
}

// Without returns a copy of e with every direct child named name removed.
func (e *Element) Without(name string) *Element {
	out := *e
	out.Children = nil
	for _, c := range e.Children {
		if c.XMLName.Local != name {
			out.Children = append(out.Children, c)
		}
	}
	return &out
}

func kg(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func fact(name, value string) *Element {
	return newElement(name, value, "contextRef", contextID, "unitRef", "pure")
}

func emissionFact(name string, v float64) *Element {
	return newElement(name, kg(v), "contextRef", contextID, "unitRef", "co2e-kg", "decimals", "2")
}

func unit(id, measure string) *Element {
	return newElement("unit", "", "id", id).add(newElement("measure", measure))
}

// BuildXBRL assembles the XBRL instance tree for a snapshot.
func BuildXBRL(s Snapshot) *Element {
	currency := strings.ToUpper(s.Entity.Currency)

	root := newElement("xbrl", "",
		"xmlns", NamespaceInstance,
		"xmlns:xsi", NamespaceXSI,
		"xmlns:link", NamespaceLink,
		"xmlns:xlink", NamespaceXLink,
		"xmlns:csrd", NamespaceCSRD,
		"xmlns:iso4217", NamespaceISO4217,
		"xsi:schemaLocation", schemaLocation,
	)

	root.add(
		newElement("link:schemaRef", "", "xlink:type", "simple", "xlink:href", taxonomyHref),
		newElement("context", "", "id", contextID).add(
			newElement("entity", "").add(newElement("identifier", s.Entity.Identifier, "scheme", leiScheme)),
			newElement("period", "").add(
				newElement("startDate", s.Period.Start.Format("2006-01-02")),
				newElement("endDate", s.Period.End.Format("2006-01-02")),
			),
		),
		fact(TagEntityName, s.Entity.Name),
		unit(strings.ToLower(currency), "iso4217:"+currency),
		unit("pure", "pure"),
		unit("co2e-kg", "csrd:CO2EquivalentKilograms"),
		emissionFact(TagScope1, s.Summary.Scope1),
		emissionFact(TagScope2, s.Summary.Scope2),
		emissionFact(TagScope3, s.Summary.Scope3),
		emissionFact(TagTotal, s.Summary.Total),
		fact(TagMethodology, s.Methodology.Framework),
		fact(TagFactors, s.Methodology.EmissionFactors),
		fact(TagCalculation, s.Methodology.CalculationMethod),
	)

	n := 0
	for _, scope := range s.Scopes {
		for _, c := range scope.Categories {
			n++
			root.add(newElement(TagCategory, "",
				"contextRef", contextID,
				"unitRef", "co2e-kg",
				"decimals", "2",
				"id", fmt.Sprintf("category-%d", n),
			).add(
				newElement("csrd:CategoryName", c.Category),
				newElement("csrd:Scope", strconv.Itoa(int(scope.Scope))),
				newElement("csrd:Emissions", kg(c.Emissions)),
				newElement("csrd:Description", fmt.Sprintf("%s emissions from %s", scope.Scope, c.Category)),
			))
		}
	}

	root.add(
		fact(TagGenerated, s.GeneratedAt.Format(time.RFC3339)),
		fact(TagTool, s.Tool),
	)
	return root
}

// EncodeXBRL serializes an element tree with an XML declaration.
func EncodeXBRL(root *Element) ([]byte, error) {
	body, err := xml.MarshalIndent(root, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode XBRL: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

// MarshalXBRL builds and serializes the XBRL instance for a snapshot.
func MarshalXBRL(s Snapshot) ([]byte, error) {
	return EncodeXBRL(BuildXBRL(s))
}

// CategoryFact is one parsed category breakdown.
type CategoryFact struct {
	Name        string  `xml:"http://eba.europa.eu/xbrl/csrd CategoryName"`
	Description string  `xml:"http://eba.europa.eu/xbrl/csrd Description"`
	Emissions   float64 `xml:"http://eba.europa.eu/xbrl/csrd Emissions"`
	Scope       int     `xml:"http://eba.europa.eu/xbrl/csrd Scope"`
}

// Facts are the values read back from an XBRL instance.
type Facts struct {
	XMLName     xml.Name       `xml:"http://www.xbrl.org/2003/instance xbrl"`
	Identifier  string         `xml:"context>entity>identifier"`
	StartDate   string         `xml:"context>period>startDate"`
	EndDate     string         `xml:"context>period>endDate"`
	EntityName  string         `xml:"http://eba.europa.eu/xbrl/csrd EntityName"`
	Methodology string         `xml:"http://eba.europa.eu/xbrl/csrd GHGAccountingMethodology"`
	GeneratedAt string         `xml:"http://eba.europa.eu/xbrl/csrd ReportGenerationDate"`
	Tool        string         `xml:"http://eba.europa.eu/xbrl/csrd ReportingTool"`
	Categories  []CategoryFact `xml:"http://eba.europa.eu/xbrl/csrd EmissionCategoryBreakdown"`
	Scope1      float64        `xml:"http://eba.europa.eu/xbrl/csrd Scope1GHGEmissions"`
	Scope2      float64        `xml:"http://eba.europa.eu/xbrl/csrd Scope2GHGEmissions"`
	Scope3      float64        `xml:"http://eba.europa.eu/xbrl/csrd Scope3GHGEmissions"`
	Total       float64        `xml:"http://eba.europa.eu/xbrl/csrd TotalGHGEmissions"`
}

// ParseFacts reads the facts of an XBRL instance.
func ParseFacts(data []byte) (Facts, error) {
	var f Facts
	if err := xml.Unmarshal(data, &f); err != nil {
		return Facts{}, fmt.Errorf("failed to parse XBRL: %w", err)
	}
	return f, nil
}
