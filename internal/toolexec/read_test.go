package toolexec

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/opencoreai/turnengine/internal/testutil"
)

func testContext(testingHandle *testing.T) Context {
	testingHandle.Helper()
	dir := testingHandle.TempDir()
	return Context{Sandbox: &Sandbox{Roots: []string{dir}}, CWD: dir}
}

func TestReadReturnsFileContents(testingHandle *testing.T) {
	toolCtx := testContext(testingHandle)
	path := filepath.Join(toolCtx.CWD, "hello.txt")
	testutil.RequireNoError(testingHandle, os.WriteFile(path, []byte("line1\nline2\nline3"), 0o644), "write fixture")

	executor := NewReadExecutor(toolCtx)
	raw, _ := json.Marshal(ReadInput{FilePath: path})
	result, err := executor.Execute(context.Background(), raw)
	testutil.RequireNoError(testingHandle, err, "execute should not error")
	testutil.RequireEqual(testingHandle, result.IsError, false, "expected success")
	testutil.RequireEqual(testingHandle, result.Content, "line1\nline2\nline3", "expected full contents")
}

func TestReadAppliesOffsetAndLimit(testingHandle *testing.T) {
	toolCtx := testContext(testingHandle)
	path := filepath.Join(toolCtx.CWD, "lines.txt")
	testutil.RequireNoError(testingHandle, os.WriteFile(path, []byte("a\nb\nc\nd\ne"), 0o644), "write fixture")

	offset := 2
	limit := 2
	executor := NewReadExecutor(toolCtx)
	raw, _ := json.Marshal(ReadInput{FilePath: path, Offset: &offset, Limit: &limit})
	result, err := executor.Execute(context.Background(), raw)
	testutil.RequireNoError(testingHandle, err, "execute should not error")
	testutil.RequireEqual(testingHandle, result.Content, "b\nc", "expected 1-indexed window")
}

func TestReadRejectsOutsideSandbox(testingHandle *testing.T) {
	toolCtx := testContext(testingHandle)
	outside := testingHandle.TempDir()
	path := filepath.Join(outside, "secret.txt")
	testutil.RequireNoError(testingHandle, os.WriteFile(path, []byte("nope"), 0o644), "write fixture")

	executor := NewReadExecutor(toolCtx)
	raw, _ := json.Marshal(ReadInput{FilePath: path})
	result, err := executor.Execute(context.Background(), raw)
	testutil.RequireNoError(testingHandle, err, "execute should not error")
	testutil.RequireEqual(testingHandle, result.IsError, true, "expected sandbox rejection")
}

func TestReadRejectsBinaryFile(testingHandle *testing.T) {
	toolCtx := testContext(testingHandle)
	path := filepath.Join(toolCtx.CWD, "bin.dat")
	testutil.RequireNoError(testingHandle, os.WriteFile(path, []byte{0x41, 0x00, 0x42}, 0o644), "write fixture")

	executor := NewReadExecutor(toolCtx)
	raw, _ := json.Marshal(ReadInput{FilePath: path})
	result, err := executor.Execute(context.Background(), raw)
	testutil.RequireNoError(testingHandle, err, "execute should not error")
	testutil.RequireEqual(testingHandle, result.IsError, true, "expected binary detection")
}

func TestReadRequiresFilePath(testingHandle *testing.T) {
	toolCtx := testContext(testingHandle)
	executor := NewReadExecutor(toolCtx)
	raw, _ := json.Marshal(ReadInput{})
	result, err := executor.Execute(context.Background(), raw)
	testutil.RequireNoError(testingHandle, err, "execute should not error")
	testutil.RequireEqual(testingHandle, result.IsError, true, "expected validation error")
}
