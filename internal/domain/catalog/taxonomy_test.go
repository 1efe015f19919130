package catalog

import "testing"

func TestDefaultTaxonomy(t *testing.T) {
	tax, err := DefaultTaxonomy()
	if err != nil {
		t.Fatalf("DefaultTaxonomy: %v", err)
	}
	if len(tax) != 10 {
		t.Fatalf("DefaultTaxonomy: want=10 main categories got=%d", len(tax))
	}
	if tax[0].Name != "소설" || tax[9].Name != "판타지/무협지" {
		t.Fatalf("DefaultTaxonomy: order got=%v", tax.MainNames())
	}

	rows := tax.SubCategoryRows()
	byName := map[string]string{}
	for _, r := range rows {
		if _, dup := byName[r.Name]; dup {
			t.Fatalf("SubCategoryRows: duplicate %q", r.Name)
		}
		byName[r.Name] = r.MainCategoryName
	}
	if byName["사랑"] != "소설" {
		t.Fatalf("SubCategoryRows: 사랑 want=소설 got=%q", byName["사랑"])
	}
	if byName["라이트노벨"] != "판타지/무협지" {
		t.Fatalf("SubCategoryRows: 라이트노벨 got=%q", byName["라이트노벨"])
	}
}

func TestParseTaxonomyRejectsEmpty(t *testing.T) {
	if _, err := ParseTaxonomy([]byte("[]")); err == nil {
		t.Fatalf("ParseTaxonomy: expected error for empty taxonomy")
	}
	if _, err := ParseTaxonomy([]byte("- subs: [a]")); err == nil {
		t.Fatalf("ParseTaxonomy: expected error for missing main")
	}
}
