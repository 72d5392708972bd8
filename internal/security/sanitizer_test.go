package security

import (
	"strings"
	"sync"
	"testing"

	"morvo/internal/config"
)

func TestSanitizeEmail(t *testing.T) {
	s := NewSanitizer(config.PIIFilterConfig{
		Enabled:      true,
		FilterEmails: true,
	})

	input := "My email is john@example.com and also jane@test.org"
	result := s.NewTurn().Sanitize(input)

	if result == input {
		t.Fatal("expected sanitization to change the input")
	}
	if strings.Contains(result, "john@example.com") {
		t.Fatal("email was not sanitized")
	}
	if !strings.Contains(result, "[EMAIL_2]") {
		t.Fatalf("expected second EMAIL placeholder, got: %s", result)
	}
}

func TestSanitizePhone(t *testing.T) {
	s := NewSanitizer(config.PIIFilterConfig{
		Enabled:      true,
		FilterPhones: true,
	})

	result := s.NewTurn().Sanitize("اتصل بي على +966-555-123-4567")

	if strings.Contains(result, "555-123-4567") {
		t.Fatal("phone was not sanitized")
	}
}

func TestSanitizeDisabled(t *testing.T) {
	s := NewSanitizer(config.PIIFilterConfig{
		Enabled: false,
	})

	input := "john@example.com 555-123-4567"
	if result := s.NewTurn().Sanitize(input); result != input {
		t.Fatal("disabled sanitizer should not modify input")
	}
}

func TestRestorePlaceholders(t *testing.T) {
	s := NewSanitizer(config.PIIFilterConfig{
		Enabled:      true,
		FilterEmails: true,
	})

	turn := s.NewTurn()
	input := "Contact john@example.com for info"
	restored := turn.Restore(turn.Sanitize(input))

	if restored != input {
		t.Fatalf("restore failed: expected %q, got %q", input, restored)
	}
}

func TestSanitizeCards(t *testing.T) {
	s := NewSanitizer(config.PIIFilterConfig{
		Enabled:      true,
		FilterCards:  true,
		FilterPhones: true,
	})

	result := s.NewTurn().Sanitize("My card is 4111-1111-1111-1111")

	if strings.Contains(result, "4111") {
		t.Fatal("card number was not sanitized")
	}
	if !strings.Contains(result, "[CARD_1]") {
		t.Fatalf("expected CARD placeholder, got: %s", result)
	}
}

func TestTurnsAreIsolated(t *testing.T) {
	s := NewSanitizer(config.PIIFilterConfig{Enabled: true, FilterEmails: true})

	a := s.NewTurn()
	b := s.NewTurn()
	sa := a.Sanitize("a@example.com")
	sb := b.Sanitize("b@example.com")

	if sa != sb {
		t.Fatalf("expected both turns to number from 1, got %q and %q", sa, sb)
	}
	if got := b.Restore(sa); got != "b@example.com" {
		t.Fatalf("turn b restored another turn's value: %q", got)
	}
}

func TestSanitizeDeterministic(t *testing.T) {
	s := NewSanitizer(config.PIIFilterConfig{Enabled: true, FilterEmails: true, FilterPhones: true})
	input := "x@y.com ثم z@y.com ثم x@y.com"

	first := s.NewTurn().Sanitize(input)
	second := s.NewTurn().Sanitize(input)
	if first != second {
		t.Fatalf("expected identical output, got %q vs %q", first, second)
	}
	if strings.Count(first, "[EMAIL_1]") != 2 {
		t.Fatalf("repeated value should reuse its placeholder: %q", first)
	}
}

func TestConcurrentTurns(t *testing.T) {
	s := NewSanitizer(config.PIIFilterConfig{Enabled: true, FilterEmails: true})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			turn := s.NewTurn()
			in := "write to someone@example.com"
			if out := turn.Restore(turn.Sanitize(in)); out != in {
				t.Errorf("round trip failed: %q", out)
			}
		}()
	}
	wg.Wait()
}
