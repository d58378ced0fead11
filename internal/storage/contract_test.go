package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// runStoreContract exercises the shared backend semantics against a concrete
// store. Both the memory and file backends run the full suite.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store, setNow func(Store, func() time.Time)) {
	ctx := context.Background()

	t.Run("add rejects invalid email", func(t *testing.T) {
		s := newStore(t)
		for _, email := range []string{"", "not-an-email", "a@b", "white space@x.com"} {
			if _, err := s.AddRegistration(ctx, email, "Jane Doe"); !errors.Is(err, ErrInvalidEmail) {
				t.Errorf("AddRegistration(%q) error = %v, want ErrInvalidEmail", email, err)
			}
		}
	})

	t.Run("add creates pending registration", func(t *testing.T) {
		s := newStore(t)
		reg, err := s.AddRegistration(ctx, "  Jane@Example.COM ", "Jane Doe")
		if err != nil {
			t.Fatalf("AddRegistration: %v", err)
		}
		if reg.Email != "jane@example.com" {
			t.Errorf("email = %q, want normalized form", reg.Email)
		}
		if reg.Status != "pending" {
			t.Errorf("status = %q, want pending", reg.Status)
		}
		if len(reg.VerificationToken) != 64 {
			t.Errorf("token length = %d, want 64", len(reg.VerificationToken))
		}
		if reg.VerificationExpiresAt == nil {
			t.Fatal("expiry not set")
		}
		if got := reg.VerificationExpiresAt.Sub(reg.CreatedAt); got != TokenTTL {
			t.Errorf("expiry window = %v, want %v", got, TokenTTL)
		}
		if reg.VerifiedAt != nil {
			t.Error("verifiedAt set on a pending registration")
		}
		if reg.ID == "" {
			t.Error("id not assigned")
		}
	})

	t.Run("duplicate email rejected case-insensitively", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.AddRegistration(ctx, "dup@example.com", "Jane Doe"); err != nil {
			t.Fatalf("first add: %v", err)
		}
		if _, err := s.AddRegistration(ctx, " DUP@example.com ", "John Doe"); !errors.Is(err, ErrDuplicateEmail) {
			t.Errorf("second add error = %v, want ErrDuplicateEmail", err)
		}
	})

	t.Run("lookup by token", func(t *testing.T) {
		s := newStore(t)
		reg, err := s.AddRegistration(ctx, "lookup@example.com", "Jane Doe")
		if err != nil {
			t.Fatalf("AddRegistration: %v", err)
		}
		found, err := s.RegistrationByToken(ctx, reg.VerificationToken)
		if err != nil {
			t.Fatalf("RegistrationByToken: %v", err)
		}
		if found == nil || found.Email != reg.Email {
			t.Fatalf("lookup returned %+v, want registration for %s", found, reg.Email)
		}

		missing, err := s.RegistrationByToken(ctx, "no-such-token")
		if err != nil {
			t.Fatalf("RegistrationByToken(missing): %v", err)
		}
		if missing != nil {
			t.Errorf("lookup of unknown token returned %+v, want nil", missing)
		}
	})

	t.Run("verify happy path clears token", func(t *testing.T) {
		s := newStore(t)
		reg, err := s.AddRegistration(ctx, "verify@example.com", "Jane Doe")
		if err != nil {
			t.Fatalf("AddRegistration: %v", err)
		}

		verified, err := s.VerifyRegistration(ctx, reg.VerificationToken)
		if err != nil {
			t.Fatalf("VerifyRegistration: %v", err)
		}
		if verified.Status != "registered" {
			t.Errorf("status = %q, want registered", verified.Status)
		}
		if verified.VerifiedAt == nil {
			t.Error("verifiedAt not stamped")
		}
		if verified.VerificationToken != "" || verified.VerificationExpiresAt != nil {
			t.Error("token or expiry not cleared after verify")
		}

		// Consumed token is gone from lookups.
		found, err := s.RegistrationByToken(ctx, reg.VerificationToken)
		if err != nil {
			t.Fatalf("RegistrationByToken after verify: %v", err)
		}
		if found != nil {
			t.Errorf("consumed token still resolves: %+v", found)
		}
	})

	t.Run("verify unknown token", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.VerifyRegistration(ctx, "bogus"); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("error = %v, want ErrInvalidToken", err)
		}
	})

	t.Run("verify twice", func(t *testing.T) {
		s := newStore(t)
		reg, err := s.AddRegistration(ctx, "twice@example.com", "Jane Doe")
		if err != nil {
			t.Fatalf("AddRegistration: %v", err)
		}
		if _, err := s.VerifyRegistration(ctx, reg.VerificationToken); err != nil {
			t.Fatalf("first verify: %v", err)
		}
		// The token was cleared, so a second attempt with the same token no
		// longer resolves to the record.
		if _, err := s.VerifyRegistration(ctx, reg.VerificationToken); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("second verify error = %v, want ErrInvalidToken", err)
		}
	})

	t.Run("verify expired token", func(t *testing.T) {
		s := newStore(t)
		reg, err := s.AddRegistration(ctx, "expired@example.com", "Jane Doe")
		if err != nil {
			t.Fatalf("AddRegistration: %v", err)
		}

		setNow(s, func() time.Time { return time.Now().Add(TokenTTL + time.Minute) })
		if _, err := s.VerifyRegistration(ctx, reg.VerificationToken); !errors.Is(err, ErrTokenExpired) {
			t.Fatalf("error = %v, want ErrTokenExpired", err)
		}

		// Expiry failure must not mutate status.
		found, err := s.RegistrationByToken(ctx, reg.VerificationToken)
		if err != nil {
			t.Fatalf("RegistrationByToken: %v", err)
		}
		if found == nil || found.Status != "pending" {
			t.Errorf("registration after expired verify = %+v, want still pending", found)
		}
	})

	t.Run("stats counts and display", func(t *testing.T) {
		s := newStore(t)
		a, _ := s.AddRegistration(ctx, "a@example.com", "Jane Doe")
		if _, err := s.AddRegistration(ctx, "b@example.com", "John Doe"); err != nil {
			t.Fatalf("AddRegistration: %v", err)
		}

		before, err := s.Stats(ctx)
		if err != nil {
			t.Fatalf("Stats: %v", err)
		}
		if before.TotalPending != 2 || before.TotalRegistered != 0 || before.Total != 2 {
			t.Errorf("counts before verify = %+v", before)
		}
		if before.DisplayCount != before.FakeBaseCount+before.TotalRegistered {
			t.Errorf("displayCount = %d, want fakeBase %d + registered %d",
				before.DisplayCount, before.FakeBaseCount, before.TotalRegistered)
		}

		if _, err := s.VerifyRegistration(ctx, a.VerificationToken); err != nil {
			t.Fatalf("VerifyRegistration: %v", err)
		}

		after, err := s.Stats(ctx)
		if err != nil {
			t.Fatalf("Stats: %v", err)
		}
		if after.TotalRegistered != before.TotalRegistered+1 {
			t.Errorf("totalRegistered = %d, want %d", after.TotalRegistered, before.TotalRegistered+1)
		}
		if after.TotalPending != before.TotalPending-1 {
			t.Errorf("totalPending = %d, want %d", after.TotalPending, before.TotalPending-1)
		}
		if after.DisplayCount != after.FakeBaseCount+after.TotalRegistered {
			t.Errorf("displayCount = %d, want fakeBase %d + registered %d",
				after.DisplayCount, after.FakeBaseCount, after.TotalRegistered)
		}
	})

	t.Run("fake base never decreases", func(t *testing.T) {
		s := newStore(t)
		setNow(s, func() time.Time { return time.Now().AddDate(0, 0, 30) })
		first, err := s.Stats(ctx)
		if err != nil {
			t.Fatalf("Stats: %v", err)
		}

		// Clock steps back a month; the persisted floor must hold.
		setNow(s, time.Now)
		second, err := s.Stats(ctx)
		if err != nil {
			t.Fatalf("Stats: %v", err)
		}
		if second.FakeBaseCount < first.FakeBaseCount {
			t.Errorf("fakeBaseCount decreased: %d -> %d", first.FakeBaseCount, second.FakeBaseCount)
		}
	})

	t.Run("concurrent verify succeeds exactly once", func(t *testing.T) {
		s := newStore(t)
		reg, err := s.AddRegistration(ctx, "race@example.com", "Jane Doe")
		if err != nil {
			t.Fatalf("AddRegistration: %v", err)
		}

		const n = 16
		var wg sync.WaitGroup
		results := make(chan error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.VerifyRegistration(ctx, reg.VerificationToken)
				results <- err
			}()
		}
		wg.Wait()
		close(results)

		var successes, failures int
		for err := range results {
			if err == nil {
				successes++
				continue
			}
			failures++
			if !errors.Is(err, ErrInvalidToken) && !errors.Is(err, ErrAlreadyVerified) {
				t.Errorf("unexpected concurrent verify error: %v", err)
			}
		}
		if successes != 1 {
			t.Errorf("concurrent verifies succeeded %d times, want exactly 1", successes)
		}
		if failures != n-1 {
			t.Errorf("concurrent verifies failed %d times, want %d", failures, n-1)
		}
	})
}
