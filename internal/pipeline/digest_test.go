package pipeline

import (
	"testing"

	"github.com/loom-ai/loom/internal/capability"
	"github.com/stretchr/testify/assert"
)

func TestComputeDigestMarkup(t *testing.T) {
	text := `<header>
  <nav class="top-nav dark"></nav>
</header>
<main id="content">
  <section id="hero" class="hero dark"></section>
  <section id="hero"></section>
</main>
<footer id="site-footer"></footer>`

	digest := ComputeDigest(capability.KindMarkup, text)

	assert.Equal(t, capability.KindMarkup, digest.Kind)
	assert.Equal(t, []string{"content", "hero", "site-footer"}, digest.Identifiers)
	assert.Equal(t, []string{"top-nav", "dark", "hero"}, digest.Variables)
	assert.Equal(t, []string{"header", "nav", "main", "section", "footer"}, digest.Sections)
}

func TestComputeDigestStyle(t *testing.T) {
	text := `:root { --brand-color: #336699; --spacing: 8px; }
#hero { color: var(--brand-color); }
.card, .panel { padding: var(--spacing); }`

	digest := ComputeDigest(capability.KindStyle, text)

	assert.Equal(t, []string{"hero", "card", "panel"}, digest.Identifiers)
	assert.Equal(t, []string{"--brand-color", "--spacing"}, digest.Variables)
	assert.Empty(t, digest.Sections)
}

func TestComputeDigestBehavior(t *testing.T) {
	text := `const toggle = document.getElementById('nav-toggle');
let open = false;
function handleClick() {
  document.querySelector('#menu').classList.toggle('open');
}
class MenuController {}`

	digest := ComputeDigest(capability.KindBehavior, text)

	assert.Equal(t, []string{"toggle", "open", "handleClick", "MenuController"}, digest.Variables)
	assert.Equal(t, []string{"nav-toggle", "menu"}, digest.Identifiers)
}

func TestComputeDigestIsPure(t *testing.T) {
	text := `<main id="a"><section id="b"></section></main>`

	first := ComputeDigest(capability.KindMarkup, text)
	second := ComputeDigest(capability.KindMarkup, text)

	assert.Equal(t, first, second)
	assert.Equal(t, ComputeDigest(capability.KindMarkup, ""), Digest{Kind: capability.KindMarkup})
}

func TestDigestClone(t *testing.T) {
	digest := ComputeDigest(capability.KindMarkup, `<main id="a" class="x y"></main>`)
	clone := digest.Clone()

	clone.Identifiers[0] = "mutated"
	assert.Equal(t, "a", digest.Identifiers[0])
	assert.False(t, digest.IsEmpty())
	assert.True(t, Digest{Kind: capability.KindCopy}.IsEmpty())
}
