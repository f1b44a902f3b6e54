package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/c360studio/rolefit/assessment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = time.Second
	tick    = 2 * time.Millisecond
)

func suggestionsShown(m *Machine) func() bool {
	return func() bool { return len(m.View().Suggestions) > 0 }
}

func TestSuggestions_DebouncedKeystrokes(t *testing.T) {
	m, _, suggestions := newTestMachine(t)
	startAnswering(t, m)
	m.ToggleOption(assessment.OtherOption)

	for _, text := range []string{"p", "pa", "pai", "pair"} {
		m.SetOtherText(text)
	}

	require.Eventually(t, suggestionsShown(m), waitFor, tick)
	assert.Equal(t, []string{"pair"}, suggestions.calls(), "only the text after the pause is fetched")
	assert.Equal(t, []string{"pair 1", "pair 2", "pair 3"}, m.View().Suggestions)
}

func TestSuggestions_ShortTextClearsList(t *testing.T) {
	m, _, suggestions := newTestMachine(t)
	startAnswering(t, m)

	m.SetOtherText("ab")
	require.Eventually(t, suggestionsShown(m), waitFor, tick)

	m.SetOtherText("a")
	assert.Empty(t, m.View().Suggestions, "cleared immediately")

	m.SetOtherText("")
	time.Sleep(5 * testConfig.SuggestionDelay)
	assert.Equal(t, []string{"ab"}, suggestions.calls())
}

func TestSuggestions_CountsCharactersNotBytes(t *testing.T) {
	m, _, suggestions := newTestMachine(t)
	startAnswering(t, m)

	m.SetOtherText("é")
	time.Sleep(5 * testConfig.SuggestionDelay)
	assert.Empty(t, suggestions.calls(), "one character is below the minimum even though it is two bytes")

	m.SetOtherText("éa")
	require.Eventually(t, func() bool { return len(suggestions.calls()) == 1 }, waitFor, tick)
}

func TestSuggestions_StaleResultIgnored(t *testing.T) {
	m, _, suggestions := newTestMachine(t)
	startAnswering(t, m)

	suggestions.mu.Lock()
	suggestions.gate = make(chan struct{})
	suggestions.started = make(chan string, 2)
	suggestions.mu.Unlock()

	m.SetOtherText("ab")
	assert.Equal(t, "ab", <-suggestions.started)

	// The first fetch is now in flight; newer text supersedes it.
	m.SetOtherText("abc")
	assert.Equal(t, "abc", <-suggestions.started)
	close(suggestions.gate)

	require.Eventually(t, suggestionsShown(m), waitFor, tick)
	time.Sleep(5 * testConfig.SuggestionDelay)
	assert.Equal(t, []string{"abc 1", "abc 2", "abc 3"}, m.View().Suggestions)
}

func TestSuggestions_ResultForPreviousQuestionIgnored(t *testing.T) {
	m, _, suggestions := newTestMachine(t)
	startAnswering(t, m)

	suggestions.mu.Lock()
	suggestions.gate = make(chan struct{})
	suggestions.started = make(chan string, 1)
	suggestions.mu.Unlock()

	m.SetOtherText("ab")
	<-suggestions.started
	require.NoError(t, m.Advance(context.Background()))
	close(suggestions.gate)

	time.Sleep(5 * testConfig.SuggestionDelay)
	v := m.View()
	assert.Equal(t, "q2", v.Current.ID)
	assert.Empty(t, v.Suggestions)
}

func TestSuggestions_SelectSuggestion(t *testing.T) {
	m, _, _ := newTestMachine(t)
	startAnswering(t, m)
	m.ToggleOption(assessment.OtherOption)

	m.SetOtherText("pa")
	require.Eventually(t, suggestionsShown(m), waitFor, tick)

	m.SelectSuggestion("pa 2")

	v := m.View()
	assert.Equal(t, "pa 2", v.OtherText)
	assert.Empty(t, v.Suggestions)
	assert.Equal(t, []string{assessment.OtherOption}, v.SelectedOptions)

	time.Sleep(5 * testConfig.SuggestionDelay)
	assert.Empty(t, m.View().Suggestions, "selecting does not trigger another fetch")
}

func TestSuggestions_SelectDoesNotToggleOther(t *testing.T) {
	m, _, _ := newTestMachine(t)
	startAnswering(t, m)

	m.SelectSuggestion("typed without checking Other")

	v := m.View()
	assert.Equal(t, "typed without checking Other", v.OtherText)
	assert.Empty(t, v.SelectedOptions)
}

func TestSuggestions_Dismiss(t *testing.T) {
	m, _, _ := newTestMachine(t)
	startAnswering(t, m)

	m.SetOtherText("pa")
	require.Eventually(t, suggestionsShown(m), waitFor, tick)

	m.DismissSuggestions()
	assert.Empty(t, m.View().Suggestions)
	assert.Equal(t, "pa", m.View().OtherText)
}

func TestSuggestions_QuestionChangeClearsList(t *testing.T) {
	m, _, _ := newTestMachine(t)
	startAnswering(t, m)

	m.SetOtherText("pa")
	require.Eventually(t, suggestionsShown(m), waitFor, tick)

	require.NoError(t, m.Advance(context.Background()))
	assert.Empty(t, m.View().Suggestions)

	m.SetOtherText("xy")
	require.Eventually(t, suggestionsShown(m), waitFor, tick)
	m.Retreat()
	assert.Empty(t, m.View().Suggestions)
	assert.Equal(t, "pa", m.View().OtherText, "free text of the earlier question is kept")
}

func TestSuggestions_ErrorDegradesToEmpty(t *testing.T) {
	m, _, suggestions := newTestMachine(t)
	startAnswering(t, m)

	suggestions.mu.Lock()
	suggestions.err = assessment.NewGenerationError("generate suggestions", errors.New("HTTP 500"))
	suggestions.mu.Unlock()

	m.SetOtherText("pa")
	require.Eventually(t, func() bool { return len(suggestions.calls()) == 1 }, waitFor, tick)
	time.Sleep(5 * testConfig.SuggestionDelay)

	v := m.View()
	assert.Empty(t, v.Suggestions)
	assert.Equal(t, "pa", v.OtherText)
}

func TestSuggestions_Truncated(t *testing.T) {
	m, _, suggestions := newTestMachine(t)
	startAnswering(t, m)

	suggestions.mu.Lock()
	suggestions.n = 8
	suggestions.mu.Unlock()

	m.SetOtherText("pa")
	require.Eventually(t, suggestionsShown(m), waitFor, tick)
	assert.Len(t, m.View().Suggestions, 5)
}
