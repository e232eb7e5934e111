package detect

import (
	"strings"

	"synx/internal/model"
)

// contentHeuristicTag applies rule 4 of spec.md §4.1: a fixed-priority
// chain of pattern-count scorers, ported from the pattern lists in
// original_source/src/detectors/mod.rs. The first scorer whose
// threshold is met wins; later scorers never run. JavaScript is
// checked before HTML so that an HTML page with a heavy inline
// <script> block is not misclassified as HTML, and TSX requires both
// TypeScript and JSX evidence before JSX/TS are tried individually.
func contentHeuristicTag(content []byte) (model.FileTag, bool) {
	text := string(content)
	lower := strings.ToLower(text)

	if looksLikeJavaScript(lower) {
		return model.TagJavaScript, true
	}
	if looksLikeTypeScript(lower) && looksLikeJSX(text, lower) {
		return model.TagTSX, true
	}
	if looksLikeJSX(text, lower) {
		return model.TagJSX, true
	}
	if looksLikeTypeScript(lower) {
		return model.TagTypeScript, true
	}
	if looksLikeVue(lower) {
		return model.TagVue, true
	}
	if looksLikeSvelte(lower) {
		return model.TagSvelte, true
	}
	if looksLikeSCSS(lower) {
		return model.TagSCSS, true
	}
	if looksLikeHTML(lower) {
		return model.TagHTML, true
	}
	return model.FileTag{}, false
}

// jsPatterns deliberately excludes bare keywords shared with TypeScript,
// JSX, Vue, and Svelte source ("const ", "return ", "export ", "get ",
// "class ", and the like) — those languages are themselves written in
// ECMAScript-derived syntax, so a pattern list built from such keywords
// would cross the JS threshold on their content too and win the
// fixed-priority chain before the later scorers ever run. What remains
// here is JS-distinctive: its own call/method idioms and runtime
// globals, not syntax TS/JSX/Vue/Svelte content shares with it.
var jsPatterns = []string{
	"function ", "() =>", "function(",
	".map(", ".filter(", ".reduce(", ".foreach(", ".then(", ".catch(",
	"console.log", "document.", "window.", "object.", "array.", "string.",
	"promise.", "fetch(", "json.", "math.",
	"$(", "jquery", "lodash", "underscore",
	"require(", "module.exports", "exports.",
}

func looksLikeJavaScript(lower string) bool {
	return countMatches(lower, jsPatterns) >= 3
}

var tsPatterns = []string{
	": string", ": number", ": boolean", ": any", ": void",
	": array<", ": readonly", ": promise<", ": map<", ": set<",
	"interface ", "type ", "implements ", "extends ", "namespace ",
	"readonly ", "private ", "protected ", "public ", "abstract ",
	"override ", "declare ",
	"partial<", "required<", "record<", "pick<", "omit<",
	"exclude<", "extract<", "nonnullable<", "returntype<", "instancetype<",
	"as const", "as any", "as ", "keyof ", "typeof ",
	"enum ", "module ", "import type", "export type",
	"?: ", "!: ", "!.", "?.",
}

func looksLikeTypeScript(lower string) bool {
	return countMatches(lower, tsPatterns) >= 3
}

var jsxPatterns = []string{
	"import react", "react.component", "react.createclass", "react.fragment",
	"import * as react",
	"<>", "</>",
	"componentdidmount", "componentdidupdate", "componentshouldupdate",
	"render() {",
	"usestate", "useeffect", "usecontext", "usereducer",
	"createelement",
	"props.", "classname=", "</",
	"export default function", "react.memo",
}

func looksLikeJSX(text, lower string) bool {
	count := countMatches(lower, jsxPatterns)
	hasJSXSyntax := strings.Contains(text, "<") && strings.Contains(text, "/>") &&
		strings.Contains(text, "{") && strings.Contains(text, "}")
	return count >= 2 || hasJSXSyntax
}

var vuePatterns = []string{
	"export default {", "vue.component", "vue.createapp", "vue.use(",
	"vue.directive(", "vue.filter(", "vue.mixin(", "vue.extend({", "new vue({",
	"data() {", "props: {", "computed: {", "methods: {", "watch: {",
	"components: {", "created() {", "mounted() {", "beforedestroy() {",
	"setup() {", "ref(", "reactive(", "computed(", "onmounted(",
}

func looksLikeVue(lower string) bool {
	hasTemplate := strings.Contains(lower, "<template") && strings.Contains(lower, "</template>")
	if hasTemplate {
		hasScript := strings.Contains(lower, "<script") && strings.Contains(lower, "</script>")
		hasStyle := strings.Contains(lower, "<style") && strings.Contains(lower, "</style>")
		if hasScript || hasStyle {
			return true
		}
	}
	return countMatches(lower, vuePatterns) >= 2
}

var sveltePatterns = []string{
	"{#if", "{:else", "{/if}",
	"{#each", "{/each}",
	"{#await", "{:then", "{:catch", "{/await}",
	"@html", "@debug", "@const",
	"onmount", "ondestroy", "beforeupdate", "afterupdate",
	"$: ", "reactive",
	"bind:", "on:", "use:", "transition:", "animate:", "class:",
	"writable(", "readable(", "derived(", "$store",
}

func looksLikeSvelte(lower string) bool {
	hasScript := strings.Contains(lower, "<script") && strings.Contains(lower, "</script>")
	hasStyle := strings.Contains(lower, "<style") && strings.Contains(lower, "</style>")
	noTemplate := !strings.Contains(lower, "<template")
	if hasScript && hasStyle && noTemplate {
		return true
	}
	return countMatches(lower, sveltePatterns) >= 2
}

var scssPatterns = []string{
	"@include ", "@mixin ", "@extend ", "@function ", "@if ", "@else",
	"@each ", "@for ", "@while ", "@import ", "@use ",
	"#{", "&:", "&.", "&-",
}

func looksLikeSCSS(lower string) bool {
	hasVariable := strings.Contains(lower, "$") && strings.Contains(lower, ":")
	return countMatches(lower, scssPatterns) >= 2 || (hasVariable && countMatches(lower, scssPatterns) >= 1)
}

var htmlTagPatterns = []string{
	"<div", "</div>", "<span", "</span>", "<p>", "</p>",
	"<h1", "<h2", "<h3", "<h4", "<h5", "<h6",
	"</h1>", "</h2>", "</h3>", "</h4>", "</h5>", "</h6>",
	"<a href", "<img src", "<table", "<tr", "<td",
	"<ul", "<ol", "<li", "<form", "<input", "<button",
	"<header", "<footer", "<nav", "<section", "<article",
}

var htmlAttributePatterns = []string{
	`class="`, `id="`, `style="`, `href="`, `src="`,
	`alt="`, `title="`, "data-", "aria-",
}

func looksLikeHTML(lower string) bool {
	if strings.Contains(lower, "<!doctype html>") || strings.Contains(lower, "<html") ||
		(strings.Contains(lower, "<head") && strings.Contains(lower, "<body")) {
		return true
	}
	if strings.Contains(lower, "<?xml") && (strings.Contains(lower, "<!doctype") || strings.Contains(lower, "<html")) {
		return true
	}
	if countMatches(lower, htmlTagPatterns) >= 2 {
		return true
	}
	if strings.Contains(lower, "<") && strings.Contains(lower, ">") && countMatches(lower, htmlAttributePatterns) >= 1 {
		return true
	}
	return false
}

func countMatches(haystack string, patterns []string) int {
	count := 0
	for _, p := range patterns {
		if strings.Contains(haystack, p) {
			count++
		}
	}
	return count
}
