package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sinaazimii/Wikidata-tools/internal/graph"
)

func loadFixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return string(data)
}

func TestParseCompare_Fixture(t *testing.T) {
	rows, err := ParseCompare(loadFixture(t, "compare_q42.html"))
	require.NoError(t, err)
	require.Len(t, rows, 9)

	label := Header{Section: SectionTerm, Property: "label", Lang: "en"}
	assert.Equal(t, CompareRow{Header: label, Op: graph.OpDelete, Object: TextRef("Douglas Adam")}, rows[0])
	assert.Equal(t, CompareRow{Header: label, Op: graph.OpInsert, Object: TextRef("Douglas Adams")}, rows[1])

	assert.Equal(t, CompareRow{
		Header: Header{Section: SectionClaim, Property: "P569"},
		Op:     graph.OpInsert,
		Object: TimeRef("11 March 1952"),
	}, rows[2])

	rank := Header{Section: SectionRank, Property: "P31", Claim: IRIRef("wd:Q5")}
	assert.Equal(t, CompareRow{Header: rank, Op: graph.OpDelete, Object: TextRef("Normal rank")}, rows[3])
	assert.Equal(t, CompareRow{Header: rank, Op: graph.OpInsert, Object: TextRef("Preferred rank")}, rows[4])

	assert.Equal(t, CompareRow{
		Header: Header{Section: SectionReference, Property: "P31", Claim: IRIRef("wd:Q5")},
		Op:     graph.OpDelete,
		Object: GroupRef(
			Snak{Property: "P248", Value: IRIRef("wd:Q36578")},
			Snak{Property: "P813", Value: TimeRef("1 January 2024")},
		),
	}, rows[5])

	assert.Equal(t, CompareRow{
		Header: Header{Section: SectionQualifier, Property: "P106", Claim: IRIRef("wd:Q36180")},
		Op:     graph.OpInsert,
		Object: GroupRef(Snak{Property: "P580", Value: TimeRef("1978")}),
	}, rows[6])

	title := Header{Section: SectionClaim, Property: "P1476"}
	assert.Equal(t, CompareRow{Header: title, Op: graph.OpDelete, Object: ObjectRef{Kind: ObjectText, Value: "Hitchhiker", Lang: "en"}}, rows[7])
	assert.Equal(t, CompareRow{Header: title, Op: graph.OpInsert, Object: ObjectRef{Kind: ObjectText, Value: "The Hitchhiker's Guide", Lang: "en"}}, rows[8])
}

func TestParseCompare_Empty(t *testing.T) {
	rows, err := ParseCompare("")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestParseCompare_RowsBeforeHeaderSkipped(t *testing.T) {
	doc := `<tr><td class="diff-deletedline"><div><del class="diffchange">orphan</del></div></td></tr>`
	rows, err := ParseCompare(doc)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestParseCompare_FullLineValue(t *testing.T) {
	doc := `<tr><td colspan="2" class="diff-lineno">Property / <a href="/wiki/Property:P21">sex or gender</a></td><td colspan="2" class="diff-lineno">Property / <a href="/wiki/Property:P21">sex or gender</a></td></tr>
<tr><td colspan="2" class="diff-empty"></td><td class="diff-marker">+</td><td class="diff-addedline"><div><span><a href="/wiki/Q6581097">male</a></span></div></td></tr>
<tr><td colspan="2" class="diff-lineno">Property / <a href="/wiki/Property:P214">VIAF ID</a></td><td colspan="2" class="diff-lineno">Property / <a href="/wiki/Property:P214">VIAF ID</a></td></tr>
<tr><td colspan="2" class="diff-empty"></td><td class="diff-marker">+</td><td class="diff-addedline"><div><span><a class="wb-external-id external" href="https://viaf.org/viaf/113230702">113230702</a></span></div></td></tr>`

	rows, err := ParseCompare(doc)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, IRIRef("wd:Q6581097"), rows[0].Object)
	assert.Equal(t, TextRef("113230702"), rows[1].Object)
}
