package prompt

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasklens/pkg/types"
)

func testExecCtx() *types.ExecutionContext {
	return &types.ExecutionContext{
		TaskID: "task-1",
		Website: types.WebsiteContext{
			Domain:   "example.com",
			Category: types.CategoryNewsContent,
			PageType: types.PageArticle,
			ExtractedData: map[string]string{
				"url": "https://example.com/news/42",
			},
		},
		PageContent: types.PageContent{
			Title:        "Breaking News",
			URL:          "https://example.com/news/42",
			SelectedText: "the selected bit",
			MainText:     "main article body",
			Headings:     []string{"First", "Second"},
			TextContent:  "full text",
			FormCount:    2,
			LinkCount:    17,
		},
		UserInput: map[string]string{
			"tone":   "neutral",
			"length": "short",
		},
	}
}

func TestInjector_SubstitutesRecognizedVariables(t *testing.T) {
	inj := NewInjector()

	out, warnings := inj.Inject(
		"Summarize {{ pageTitle }} on {{domain}} ({{pageType}}, {{category}}): {{mainText}}",
		testExecCtx())

	assert.Empty(t, warnings)
	assert.Equal(t, "Summarize Breaking News on example.com (article, news_content): main article body", out)
}

func TestInjector_TitleAliasAndCounts(t *testing.T) {
	inj := NewInjector()

	out, warnings := inj.Inject("{{title}} has {{formCount}} forms and {{linkCount}} links", testExecCtx())

	assert.Empty(t, warnings)
	assert.Equal(t, "Breaking News has 2 forms and 17 links", out)
}

func TestInjector_UserInputIsSortedDeterministically(t *testing.T) {
	inj := NewInjector()

	out, _ := inj.Inject("{{userInput}}", testExecCtx())
	assert.Equal(t, "length: short\ntone: neutral", out)
}

func TestInjector_UnknownVariableBecomesPlaceholder(t *testing.T) {
	inj := NewInjector()

	out, warnings := inj.Inject("Use {{bogus}} and {{domain}}", testExecCtx())

	assert.Equal(t, "Use [bogus] and example.com", out)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "bogus")
}

func TestInjector_NoResidualBraces(t *testing.T) {
	inj := NewInjector()

	templates := []string{
		"{{domain}} plain",
		"{{unknown}} {{another}}",
		"dangling {{brace",
		"stray }} closer",
		"{{ domain }} and {{mainText}}",
	}
	for _, tpl := range templates {
		out, _ := inj.Inject(tpl, testExecCtx())
		assert.NotContains(t, out, "{{", tpl)
		assert.NotContains(t, out, "}}", tpl)
	}
}

func TestInjector_TruncatesLongValues(t *testing.T) {
	inj := NewInjector(WithMaxVariableLength(10))

	ctx := testExecCtx()
	ctx.PageContent.MainText = strings.Repeat("a", 50)

	out, _ := inj.Inject("{{mainText}}", ctx)
	assert.Equal(t, strings.Repeat("a", 10)+"...", out)
}

func TestInjector_TruncatesOnRunesNotBytes(t *testing.T) {
	inj := NewInjector(WithMaxVariableLength(5))

	ctx := testExecCtx()
	ctx.PageContent.MainText = strings.Repeat("é", 20)

	out, _ := inj.Inject("{{mainText}}", ctx)
	assert.Equal(t, strings.Repeat("é", 5)+"...", out)
	assert.True(t, utf8.ValidString(out))
}

func TestInjector_DefaultTruncationAt2000(t *testing.T) {
	inj := NewInjector()

	ctx := testExecCtx()
	ctx.PageContent.TextContent = strings.Repeat("x", 2500)

	out, _ := inj.Inject("{{textContent}}", ctx)
	assert.Len(t, out, 2000+len("..."))
	assert.True(t, strings.HasSuffix(out, "..."))
}

func TestValidate(t *testing.T) {
	inj := NewInjector()

	tests := []struct {
		name       string
		template   string
		wantValid  bool
		wantErrSub string
	}{
		{"valid", "Summarize {{mainText}} from {{domain}} for me please", true, ""},
		{"empty", "   ", false, "empty"},
		{"unknown variable", "Read {{nonsense}} from the page right now", false, "unknown template variable"},
		{"single brace token", "Summarize {mainText} from the current page", false, "malformed variable token"},
		{"unbalanced braces", "Summarize {{mainText from the current page", false, "unbalanced"},
		{"too long", strings.Repeat("a", 10001), false, "maximum length"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := inj.Validate(tt.template)
			assert.Equal(t, tt.wantValid, result.IsValid)
			if tt.wantErrSub != "" {
				require.NotEmpty(t, result.Errors)
				assert.Contains(t, strings.Join(result.Errors, " | "), tt.wantErrSub)
			}
		})
	}
}

func TestValidate_Warnings(t *testing.T) {
	inj := NewInjector()

	short := inj.Validate("{{domain}} ok")
	assert.True(t, short.IsValid)
	assert.NotEmpty(t, short.Warnings)

	noVars := inj.Validate("Summarize the page I am currently reading in two sentences")
	assert.True(t, noVars.IsValid)
	assert.NotEmpty(t, noVars.Warnings)
}

func TestValidate_RoundTripWithInject(t *testing.T) {
	inj := NewInjector()

	template := "Summarize {{pageTitle}} ({{url}}) focusing on {{selectedText}}"
	out, warnings := inj.Inject(template, testExecCtx())
	assert.Empty(t, warnings)

	// Output produced from recognized variables validates cleanly.
	result := inj.Validate(out)
	assert.True(t, result.IsValid)
	assert.Empty(t, result.Errors)
}
