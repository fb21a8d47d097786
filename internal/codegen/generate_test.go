package codegen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fsscompiler/internal/graph"
	"fsscompiler/internal/resolve"
)

func resolveDoc(t *testing.T, doc string) []resolve.ResolvedCall {
	t.Helper()
	g, err := graph.Load([]byte(doc))
	require.NoError(t, err)
	calls, _, err := resolve.NewResolver(resolve.PolicyPassThrough).Resolve(g)
	require.NoError(t, err)
	return calls
}

func mainBody(src string) []string {
	start := strings.Index(src, "int main() {\n")
	body := src[start+len("int main() {\n"):]
	body = strings.TrimSuffix(body, "}\n")
	return strings.Split(strings.TrimRight(body, "\n"), "\n")
}

func TestGenerate_EndToEndScenario(t *testing.T) {
	calls := resolveDoc(t, `{"functions":[{"name":"func1","function":"add","parameters":{"x1":"10","x2":"3"}},{"name":"func2","function":"mult","parameters":{"x1":"func1","x2":"10"}}]}`)

	src := Generate(calls)

	assert.Equal(t, []string{
		"    auto func1 = add(10, 3);",
		"    auto func2 = mult(func1, 10);",
		"    return func2;",
	}, mainBody(src))
}

func TestGenerate_FullText(t *testing.T) {
	calls := resolveDoc(t, `{"functions":[{"name":"s","function":"share","parameters":{"v":"7"}}]}`)

	want := prologueText + "\nint main() {\n    auto s = share(7);\n    return s;\n}\n"
	assert.Equal(t, want, Generate(calls))
}

func TestGenerate_OneStatementPerCallInOrder(t *testing.T) {
	calls := resolveDoc(t, `{"functions":[
		{"name":"c","function":"f3","parameters":{}},
		{"name":"a","function":"f1","parameters":{"p":"c"}},
		{"name":"b","function":"f2","parameters":{"p":"a","q":"1"}},
		{"name":"a","function":"f4","parameters":{"p":"b"}}
	]}`)

	lines := mainBody(Generate(calls))
	require.Len(t, lines, 5)
	assert.Equal(t, "    auto c = f3();", lines[0])
	assert.Equal(t, "    auto a = f1(c);", lines[1])
	assert.Equal(t, "    auto b = f2(a, 1);", lines[2])
	assert.Equal(t, "    auto a = f4(b);", lines[3])
	assert.Equal(t, "    return a;", lines[4])
}

func TestGenerate_EmptyGraphReturnsDefault(t *testing.T) {
	for _, doc := range []string{`{}`, `{"functions":[]}`} {
		src := Generate(resolveDoc(t, doc))
		assert.Equal(t, []string{"    return 0;"}, mainBody(src), doc)
		assert.True(t, strings.HasPrefix(src, prologueText))
	}
	assert.Equal(t, Generate(nil), Generate([]resolve.ResolvedCall{}))
}

func TestGenerate_Deterministic(t *testing.T) {
	doc := `{"functions":[{"name":"k","function":"KeyGen","parameters":{"z":"3","a":"seed","m":"1.5"}}]}`
	first := Generate(resolveDoc(t, doc))
	for i := 0; i < 20; i++ {
		if got := Generate(resolveDoc(t, doc)); got != first {
			t.Fatalf("output differs on iteration %d:\n%s\nvs\n%s", i, first, got)
		}
	}
	assert.Contains(t, first, "auto k = KeyGen(seed, 1.5, 3);")
}

func TestPrologue_RenderedOnce(t *testing.T) {
	require.NotEmpty(t, Prologue)
	assert.Equal(t, renderPrologue(Prologue), prologueText)
	assert.True(t, strings.HasPrefix(prologueText, "#include <iostream>\n"))
	assert.Contains(t, prologueText, "#include \"tools/secret_sharing.hpp\"\n")
	assert.Equal(t, len(Prologue), strings.Count(prologueText, "#include "))
}

func TestResultName(t *testing.T) {
	assert.Equal(t, "0", ResultName(nil))
	assert.Equal(t, "z", ResultName([]resolve.ResolvedCall{{Name: "y"}, {Name: "z"}}))
}
