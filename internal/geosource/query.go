package geosource

import (
	"fmt"
	"strings"

	"github.com/Nardjo/leadster/internal/model"
)

// BuildQuery assembles one compound Overpass QL query covering every
// requested area crossed with every shop type. Each area resolves to a named
// administrative relation; the areas are unioned into a single .searchArea
// set so the whole harvest costs one upstream request.
func BuildQuery(areas []string, types []model.ShopType) string {
	var b strings.Builder
	b.WriteString("[out:json][timeout:50];\n")

	for i, name := range areas {
		fmt.Fprintf(&b, "area[\"name\"=%q][\"admin_level\"~\"[2-9]\"]->.a%d;\n", name, i)
	}
	refs := make([]string, len(areas))
	for i := range areas {
		refs[i] = fmt.Sprintf(".a%d", i)
	}
	fmt.Fprintf(&b, "(%s;)->.searchArea;\n", strings.Join(refs, ";"))

	b.WriteString("(\n")
	for _, st := range types {
		k, v := st.Key()
		if v == "" {
			continue
		}
		fmt.Fprintf(&b, "  node[%q=%q](area.searchArea);\n", k, v)
		fmt.Fprintf(&b, "  way[%q=%q](area.searchArea);\n", k, v)
		fmt.Fprintf(&b, "  relation[%q=%q](area.searchArea);\n", k, v)
	}
	b.WriteString(");\nout body tags;")

	return b.String()
}
