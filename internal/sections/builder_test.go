package sections

import (
	"encoding/json"
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func accountsTopic() map[string]any {
	return map[string]any{
		"title":  "Accounts",
		"anchor": "Accounts",
		"identifiers": []any{
			docPrefix + "/Accounts",
			docPrefix + "/CalDAV",
			docPrefix + "/CardDAV",
			docPrefix + "/GoogleAccount",
			docPrefix + "/LDAP",
			docPrefix + "/MobileAccounts",
			docPrefix + "/SubscribedCalendars",
		},
	}
}

func TestBuild_AccountsScenario(t *testing.T) {
	b := Builder{SkipCatalog: true, Platforms: []string{"iOS", "macOS"}}
	got, err := b.Build([]any{accountsTopic()})
	require.NoError(t, err)

	parents := Parents(got)
	require.Len(t, parents, 1)
	assert.Equal(t, "accounts", parents[0].Identifier)
	assert.Equal(t, "Accounts", parents[0].Name)
	assert.False(t, parents[0].IsSubSection)
	assert.Empty(t, parents[0].ParentSection)

	children := Children(got, "accounts")
	assert.Equal(t,
		[]string{"caldav", "carddav", "googleaccount", "ldap", "mobileaccounts", "subscribedcalendars"},
		Identifiers(children))
	for _, c := range children {
		assert.NotEqual(t, "accounts", c.Identifier)
		assert.Equal(t, "accounts", c.ParentSection)
		assert.Equal(t, "Accounts", c.ParentName)
		assert.Equal(t, []string{"iOS", "macOS"}, c.Platforms)
		assert.False(t, c.IsSynthetic)
		assert.Len(t, c.ConfigurationIdentifiers, 1)
		assert.NotNil(t, c.Parameters)
	}
	assert.Len(t, got, 7)
}

func TestBuild_SubSectionShape(t *testing.T) {
	b := Builder{SkipCatalog: true}
	got, err := b.Build([]any{accountsTopic()})
	require.NoError(t, err)

	want := Section{
		Identifier:               "googleaccount",
		Name:                     "Google Account",
		IsSubSection:             true,
		ParentSection:            "accounts",
		ParentName:               "Accounts",
		Platforms:                []string{},
		ConfigurationIdentifiers: []string{docPrefix + "/GoogleAccount"},
		Parameters:               []Parameter{},
	}
	if diff := cmp.Diff(want, got[3]); diff != "" {
		t.Errorf("sub-section mismatch (-want +got):\n%s", diff)
	}
}

// No sub-section may point at a parent with its own identifier, whatever the
// casing of the raw identifiers.
func TestBuild_NoSelfReference(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	randomCase := func(s string) string {
		var sb strings.Builder
		for _, r := range s {
			if rng.Intn(2) == 0 {
				sb.WriteString(strings.ToUpper(string(r)))
			} else {
				sb.WriteString(strings.ToLower(string(r)))
			}
		}
		return sb.String()
	}

	titles := []string{"Accounts", "Wi-Fi", "Exchange ActiveSync", "VPN", "Certificate PKCS1"}
	for trial := 0; trial < 50; trial++ {
		var topics []RawTopic
		for _, title := range titles {
			self := strings.ReplaceAll(strings.ReplaceAll(title, " ", ""), "-", "")
			topics = append(topics, RawTopic{
				Title: title,
				Identifiers: []string{
					docPrefix + "/" + randomCase(self),
					docPrefix + "/" + randomCase("Child"+self),
				},
			})
		}

		b := Builder{SkipCatalog: true}
		for _, s := range b.BuildTopics(topics) {
			if s.IsSubSection {
				require.NotEqual(t, NormalizeKey(s.Identifier), NormalizeKey(s.ParentSection),
					"self-referencing sub-section %+v", s)
			}
		}
	}
}

func TestBuild_CountLaw(t *testing.T) {
	for n := 1; n <= 8; n++ {
		ids := []string{docPrefix + "/WIFI"}
		for i := 1; i < n; i++ {
			ids = append(ids, docPrefix+"/Child"+string(rune('A'+i)))
		}
		b := Builder{SkipCatalog: true}
		got := b.BuildTopics([]RawTopic{{Title: "Wi-Fi", Identifiers: ids}})
		assert.Len(t, Children(got, "wifi"), n-1, "n=%d", n)
	}
}

func TestBuild_IdentifiersUnique(t *testing.T) {
	topics := []any{
		accountsTopic(),
		// Second topic repeating a child of the first and the catalogue's Passcode.
		map[string]any{
			"title": "Exchange",
			"identifiers": []any{
				docPrefix + "/Exchange",
				docPrefix + "/CalDAV",
				docPrefix + "/Passcode",
			},
		},
		// Same title as the first topic.
		map[string]any{"title": "ACCOUNTS", "identifiers": []any{docPrefix + "/Directory"}},
	}

	var b Builder
	got, err := b.Build(topics)
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, s := range got {
		require.False(t, seen[s.Identifier], "duplicate identifier %q", s.Identifier)
		seen[s.Identifier] = true
	}

	var caldav Section
	for _, s := range got {
		if s.Identifier == "caldav" {
			caldav = s
		}
	}
	assert.Equal(t, "accounts", caldav.ParentSection, "first claimant keeps the identifier")

	var passcode Section
	for _, s := range got {
		if s.Identifier == "passcode" {
			passcode = s
		}
	}
	assert.False(t, passcode.IsSynthetic, "discovered sections suppress the catalogue entry")
	assert.Equal(t, "exchange", passcode.ParentSection)

	var accounts Section
	for _, s := range got {
		if s.Identifier == "accounts" {
			accounts = s
		}
	}
	assert.Contains(t, accounts.ConfigurationIdentifiers, docPrefix+"/Directory",
		"duplicate parent contributes provenance")
	assert.Equal(t, "accounts", Children(got, "accounts")[len(Children(got, "accounts"))-1].ParentSection)
}

// A topic titled after an earlier sub-section hands its children to that
// sub-section's parent so no section ends up two levels down.
func TestBuild_TopicNamedAfterSubSection(t *testing.T) {
	b := Builder{SkipCatalog: true}
	got, err := b.Build([]any{
		accountsTopic(),
		map[string]any{
			"title": "LDAP",
			"identifiers": []any{
				docPrefix + "/LDAP",
				docPrefix + "/LDAPSearch",
			},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"accounts"}, Identifiers(Parents(got)))

	byID := make(map[string]Section, len(got))
	for _, s := range got {
		byID[s.Identifier] = s
	}
	for _, s := range got {
		if !s.IsSubSection {
			continue
		}
		parent, ok := byID[s.ParentSection]
		require.True(t, ok, "%q has missing parent %q", s.Identifier, s.ParentSection)
		assert.False(t, parent.IsSubSection, "%q is nested under sub-section %q", s.Identifier, parent.Identifier)
	}

	search := byID["ldapsearch"]
	assert.Equal(t, "accounts", search.ParentSection)
	assert.Equal(t, "Accounts", search.ParentName)
	assert.Contains(t, Identifiers(Children(got, "accounts")), "ldapsearch")
	assert.True(t, byID["ldap"].IsSubSection)
}

func TestBuild_MissingTitleUsesPosition(t *testing.T) {
	b := Builder{SkipCatalog: true}
	got, err := b.Build([]any{
		accountsTopic(),
		map[string]any{"anchor": "untitled-anchor", "identifiers": []any{docPrefix + "/Thing"}},
	})
	require.NoError(t, err)

	parents := Parents(got)
	require.Len(t, parents, 2)
	assert.Equal(t, "section2", parents[1].Identifier)
	assert.Equal(t, "untitled-anchor", parents[1].Name)
	assert.Equal(t, "section2", Children(got, "section2")[0].ParentSection)
}

func TestBuild_MalformedTopicsSkipped(t *testing.T) {
	input := []any{
		"not an object",
		map[string]any{"identifiers": []any{"x"}},             // no title or anchor
		map[string]any{"title": "Orphan"},                     // no identifiers
		map[string]any{"title": "Bad", "identifiers": "oops"}, // identifiers not an array
		map[string]any{"title": "Mixed", "identifiers": []any{42, docPrefix + "/Good"}},
		accountsTopic(),
	}

	b := Builder{SkipCatalog: true}
	got, err := b.Build(input)
	require.NoError(t, err)

	assert.Equal(t, []string{"mixed", "accounts"}, Identifiers(Parents(got)))
	assert.Equal(t, []string{"good"}, Identifiers(Children(got, "mixed")))
}

func TestBuild_InvalidStructure(t *testing.T) {
	inputs := []any{
		nil,
		map[string]any{"topicSections": []any{}},
		"topics",
		json.RawMessage(`{"title":"Accounts"}`),
		json.RawMessage(`not json`),
	}
	for _, in := range inputs {
		_, err := BuildSections(in)
		assert.True(t, errors.Is(err, ErrInvalidSpecStructure), "input %#v: err=%v", in, err)
	}
}

func TestBuild_RawJSONInput(t *testing.T) {
	raw := json.RawMessage(`[{"title":"Accounts","identifiers":["` + docPrefix + `/Accounts","` + docPrefix + `/LDAP"]}]`)
	b := Builder{SkipCatalog: true}
	got, err := b.Build(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"accounts", "ldap"}, Identifiers(got))
}

func TestBuild_EmptyInputStillMergesCatalog(t *testing.T) {
	got, err := BuildSections([]any{})
	require.NoError(t, err)
	assert.Len(t, got, len(DefaultCatalog()))
	for _, s := range got {
		assert.True(t, s.IsSynthetic)
	}
}

func TestBuild_Idempotent(t *testing.T) {
	var b Builder
	first, err := b.Build([]any{accountsTopic()})
	require.NoError(t, err)
	second, err := b.Build([]any{accountsTopic()})
	require.NoError(t, err)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("builds differ (-first +second):\n%s", diff)
	}
}

func TestBuild_MarkupInTitle(t *testing.T) {
	b := Builder{SkipCatalog: true}
	got := b.BuildTopics([]RawTopic{{Title: "Apps &amp; <code>Books</code>", Identifiers: nil}})
	require.Len(t, got, 1)
	assert.Equal(t, "Apps & Books", got[0].Name)
}
