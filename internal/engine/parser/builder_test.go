package parser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rangefinder/internal/core/errors"
)

func TestBuild_FileTooLargeBeforeGrammarWork(t *testing.T) {
	eng := newFakeEngine()
	b := NewBuilder(newFakeRegistry(), eng)
	defer b.Close()

	_, err := b.Build(context.Background(), []byte(strings.Repeat("a", DefaultMaxSourceChars+1)), "java")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeFileTooLarge))
	assert.Zero(t, eng.loadCalls.Load())

	// The size check runs before language resolution.
	_, err = b.Build(context.Background(), []byte(strings.Repeat("a", DefaultMaxSourceChars+1)), "cobol")
	assert.True(t, errors.IsCode(err, errors.CodeFileTooLarge))
}

func TestBuild_SizeLimitIsInclusive(t *testing.T) {
	eng := newFakeEngine()
	b := NewBuilder(newFakeRegistry(), eng, WithLimits(Limits{MaxSourceChars: 8, ParseTimeout: time.Second}))
	defer b.Close()

	f, err := b.Build(context.Background(), []byte("12345678"), "java")
	require.NoError(t, err)
	f.Close()

	_, err = b.Build(context.Background(), []byte("123456789"), "java")
	assert.True(t, errors.IsCode(err, errors.CodeFileTooLarge))
}

func TestBuild_SizeLimitCountsCharacters(t *testing.T) {
	eng := newFakeEngine()
	b := NewBuilder(newFakeRegistry(), eng, WithLimits(Limits{MaxSourceChars: 8, ParseTimeout: time.Second}))
	defer b.Close()

	// Eight 3-byte runes: 24 bytes, 8 characters.
	f, err := b.Build(context.Background(), []byte(strings.Repeat("中", 8)), "java")
	require.NoError(t, err)
	f.Close()

	_, err = b.Build(context.Background(), []byte(strings.Repeat("中", 9)), "java")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeFileTooLarge))
	assert.Contains(t, err.Error(), "9 characters")
	assert.Equal(t, int32(1), eng.loadCalls.Load())
}

func TestBuild_UnsupportedLanguage(t *testing.T) {
	eng := newFakeEngine()
	b := NewBuilder(newFakeRegistry(), eng)
	defer b.Close()

	for _, id := range []string{"cobol", "Java", " java", ""} {
		_, err := b.Build(context.Background(), []byte("x"), id)
		require.Error(t, err, id)
		assert.True(t, errors.IsCode(err, errors.CodeUnsupportedLanguage), id)
	}
	assert.Zero(t, eng.loadCalls.Load())
}

func TestBuild_LoadFailureIsLanguageMismatchAndNotCached(t *testing.T) {
	eng := newFakeEngine()
	eng.loadErr = fmt.Errorf("incompatible ABI")
	b := NewBuilder(newFakeRegistry(), eng)
	defer b.Close()

	for i := 0; i < 2; i++ {
		_, err := b.Build(context.Background(), []byte("class A {}"), "java")
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.CodeLanguageMismatch))
		assert.Contains(t, err.Error(), "incompatible ABI")
	}
	assert.Equal(t, int32(2), eng.loadCalls.Load())
	assert.Empty(t, b.LoadedLanguages())

	eng.loadErr = nil
	f, err := b.Build(context.Background(), []byte("class A {}"), "java")
	require.NoError(t, err)
	f.Close()
	assert.Equal(t, []string{"java"}, b.LoadedLanguages())
}

func TestBuild_LoadPanicIsLanguageMismatch(t *testing.T) {
	eng := newFakeEngine()
	eng.loadPanic = true
	b := NewBuilder(newFakeRegistry(), eng)
	defer b.Close()

	_, err := b.Build(context.Background(), []byte("class A {}"), "java")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeLanguageMismatch))
}

func TestBuild_BindFailureIsLanguageMismatch(t *testing.T) {
	eng := newFakeEngine()
	eng.newParserErr = fmt.Errorf("version mismatch")
	b := NewBuilder(newFakeRegistry(), eng)
	defer b.Close()

	_, err := b.Build(context.Background(), []byte("class A {}"), "java")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeLanguageMismatch))
}

func TestBuild_NoTreeIsParseTimeout(t *testing.T) {
	eng := newFakeEngine()
	eng.parseNil = true
	b := NewBuilder(newFakeRegistry(), eng)
	defer b.Close()

	_, err := b.Build(context.Background(), []byte("class A {}"), "java")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeParseTimeout))

	// The parser went back to the pool.
	entry := b.cached("java")
	require.NotNil(t, entry)
	leased, idle := entry.pool.Stats()
	assert.Equal(t, 0, leased)
	assert.Equal(t, 1, idle)
}

func TestBuild_CancelledContextIsParseTimeout(t *testing.T) {
	eng := newFakeEngine()
	b := NewBuilder(newFakeRegistry(), eng)
	defer b.Close()

	// Warm the grammar cache so the cancellation is seen at parse time.
	f, err := b.Build(context.Background(), []byte("class A {}"), "java")
	require.NoError(t, err)
	f.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = b.Build(ctx, []byte("class A {}"), "java")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeParseTimeout))
	assert.Equal(t, int32(1), eng.parseCalls.Load())
}

func TestBuild_TimeoutIsPassedToParser(t *testing.T) {
	eng := newFakeEngine()
	b := NewBuilder(newFakeRegistry(), eng, WithLimits(Limits{MaxSourceChars: 100, ParseTimeout: 250 * time.Millisecond}))
	defer b.Close()

	f, err := b.Build(context.Background(), []byte("class A {}"), "java")
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, 250*time.Millisecond, f.parser.(*fakeParser).timeout)
}

func TestBuild_ConcurrentFirstLoadsCollapse(t *testing.T) {
	eng := newFakeEngine()
	eng.loadDelay = 50 * time.Millisecond
	b := NewBuilder(newFakeRegistry(), eng)
	defer b.Close()

	const callers = 16
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f, err := b.Build(context.Background(), []byte("class A {}"), "java")
			if err != nil {
				errs <- err
				return
			}
			f.Close()
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("unexpected build error: %v", err)
	}
	assert.Equal(t, int32(1), eng.loadCalls.Load())
}

func TestBuild_CancelledCallerDoesNotFailSharedLoad(t *testing.T) {
	eng := newFakeEngine()
	eng.loadStarted = make(chan struct{}, 1)
	eng.loadGate = make(chan struct{})
	b := NewBuilder(newFakeRegistry(), eng)
	defer b.Close()

	src := []byte("class A {}")
	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		f, err := b.Build(ctxA, src, "java")
		if err == nil {
			f.Close()
		}
		errA <- err
	}()
	<-eng.loadStarted

	errB := make(chan error, 1)
	go func() {
		f, err := b.Build(context.Background(), src, "java")
		if err == nil {
			f.Close()
		}
		errB <- err
	}()

	cancelA()
	select {
	case err := <-errA:
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.CodeParseTimeout), err.Error())
	case <-time.After(time.Second):
		t.Fatal("cancelled caller kept waiting on the shared load")
	}

	close(eng.loadGate)
	select {
	case err := <-errB:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the live caller")
	}
	assert.Equal(t, int32(1), eng.loadCalls.Load())
	assert.Equal(t, []string{"java"}, b.LoadedLanguages())
}

func TestBuild_GrammarLoadedOncePerLanguage(t *testing.T) {
	eng := newFakeEngine()
	b := NewBuilder(newFakeRegistry(), eng)
	defer b.Close()

	for i := 0; i < 5; i++ {
		f, err := b.Build(context.Background(), []byte("class A {}"), "java")
		require.NoError(t, err)
		f.Close()
	}
	f, err := b.Build(context.Background(), []byte("a = 1"), "toml")
	require.NoError(t, err)
	f.Close()

	assert.Equal(t, int32(2), eng.loadCalls.Load())
	assert.Equal(t, []string{"java", "toml"}, b.LoadedLanguages())
}

func TestBuild_CopiesSource(t *testing.T) {
	eng := newFakeEngine()
	b := NewBuilder(newFakeRegistry(), eng)
	defer b.Close()

	src := []byte("class A {}")
	f, err := b.Build(context.Background(), src, "java")
	require.NoError(t, err)
	defer f.Close()

	src[0] = 'X'
	assert.Equal(t, "class A {}", string(f.Source()))
	assert.Equal(t, "java", f.Language())
	assert.Equal(t, "java", f.Bundle().ID)
}

func TestBuild_ReusesPooledParsers(t *testing.T) {
	eng := newFakeEngine()
	b := NewBuilder(newFakeRegistry(), eng)
	defer b.Close()

	for i := 0; i < 3; i++ {
		f, err := b.Build(context.Background(), []byte("class A {}"), "java")
		require.NoError(t, err)
		f.Close()
	}
	assert.Equal(t, int32(1), eng.parserCalls.Load())
}
