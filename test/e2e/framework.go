//go:build e2e

package e2e

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/catalogfs/internal/logger"
	"github.com/marmos91/catalogfs/pkg/adapter/fuse"
	"github.com/marmos91/catalogfs/pkg/catalog"
	"github.com/marmos91/catalogfs/pkg/catalog/local"
	"github.com/marmos91/catalogfs/pkg/content"
	"github.com/marmos91/catalogfs/pkg/metadata"
	"github.com/marmos91/catalogfs/pkg/server"
	"github.com/marmos91/catalogfs/pkg/vfs"
	"golang.org/x/crypto/bcrypt"
)

const (
	testZone     = "tempZone"
	testUser     = "rods"
	testPassword = "rods"
)

// HomeDir is the test user's home collection, relative to the mount.
var HomeDir = filepath.Join(testZone, "home", testUser)

// TestContext provides a complete testing environment with:
// - A catalog engine on the configured stores
// - A connected session mounted with FUSE
// - Cleanup mechanisms
type TestContext struct {
	T             *testing.T
	Config        *TestConfig
	Server        *server.Server
	Engine        *local.Engine
	Session       *vfs.Session
	MetadataStore metadata.Store
	ContentStore  content.Store
	MountPath     string
	ctx           context.Context
	cancel        context.CancelFunc
	stopServer    context.CancelFunc
	wg            sync.WaitGroup
	tempDirs      []string
	mounted       bool
}

// NewTestContext starts the engine, connects a session and mounts it.
func NewTestContext(t *testing.T, config *TestConfig) *TestContext {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())

	tc := &TestContext{
		T:      t,
		Config: config,
		ctx:    ctx,
		cancel: cancel,
	}

	tc.setupStores()
	tc.startEngine()
	tc.Mount()

	return tc
}

func (tc *TestContext) setupStores() {
	tc.T.Helper()

	var err error
	tc.MetadataStore, err = tc.Config.CreateMetadataStore(tc.ctx, tc.CreateTempDir)
	if err != nil {
		tc.T.Fatalf("Failed to create metadata store: %v", err)
	}

	tc.ContentStore, err = tc.Config.CreateContentStore(tc.ctx, tc.CreateTempDir)
	if err != nil {
		tc.T.Fatalf("Failed to create content store: %v", err)
	}
}

func (tc *TestContext) startEngine() {
	tc.T.Helper()

	// Functional tests, not debugging sessions
	logger.SetLevel("ERROR")

	engine, err := local.NewEngine(tc.ctx, local.Config{
		Zone:            testZone,
		Host:            "localhost",
		Port:            1247,
		DefaultResource: "demoResc",
		BcryptCost:      bcrypt.MinCost,
		Users:           []local.User{{Name: testUser, Password: testPassword}},
	}, tc.MetadataStore, tc.ContentStore)
	if err != nil {
		tc.T.Fatalf("Failed to start catalog engine: %v", err)
	}
	tc.Engine = engine

	tc.Session = vfs.NewSession(engine, vfs.StaticEnv(
		catalog.Env{Host: "localhost", Port: 1247, User: testUser, Zone: testZone, DefaultResource: "demoResc"},
		catalog.Credentials{Password: testPassword},
	), vfs.Options{})
	if err := tc.Session.Connect(tc.ctx); err != nil {
		tc.T.Fatalf("Failed to connect session: %v", err)
	}
}

// Mount serves the session over FUSE and waits until the catalog root is
// visible through it. A remount reuses the first mountpoint.
func (tc *TestContext) Mount() {
	tc.T.Helper()

	if tc.MountPath == "" {
		tc.MountPath = tc.CreateTempDir("catalogfs-e2e-mount-*")
	}

	tc.Server = server.New()
	if err := tc.Server.AddAdapter(fuse.New(fuse.Config{Mountpoint: tc.MountPath}, tc.Session)); err != nil {
		tc.T.Fatalf("Failed to add FUSE adapter: %v", err)
	}

	serveCtx, stop := context.WithCancel(tc.ctx)
	tc.stopServer = stop

	tc.wg.Add(1)
	go func() {
		defer tc.wg.Done()
		if err := tc.Server.Serve(serveCtx); err != nil && !errors.Is(err, context.Canceled) {
			tc.T.Logf("Server error: %v", err)
		}
	}()

	tc.waitForMount()
	tc.mounted = true
}

func (tc *TestContext) waitForMount() {
	tc.T.Helper()

	timeout := time.After(10 * time.Second)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-timeout:
			tc.T.Fatal("Timeout waiting for FUSE mount")
		case <-ticker.C:
			entries, err := os.ReadDir(tc.MountPath)
			if err == nil && slices.ContainsFunc(entries, func(e os.DirEntry) bool { return e.Name() == testZone }) {
				return
			}
		}
	}
}

// Unmount stops the server, which unmounts the filesystem, and waits for
// it to return.
func (tc *TestContext) Unmount() {
	tc.T.Helper()

	if !tc.mounted {
		return
	}
	tc.stopServer()
	tc.wg.Wait()
	tc.mounted = false
}

// Cleanup unmounts, tears down the session and engine, and removes
// temporary files.
func (tc *TestContext) Cleanup() {
	tc.T.Helper()

	tc.Unmount()

	if tc.Session != nil {
		tc.Session.Destroy(context.Background())
	}
	if tc.Engine != nil {
		_ = tc.Engine.Close()
	}

	tc.cancel()

	for _, dir := range tc.tempDirs {
		_ = os.RemoveAll(dir)
	}
}

// Path returns the absolute path of a catalog path relative to the mount.
func (tc *TestContext) Path(relativePath string) string {
	return filepath.Join(tc.MountPath, relativePath)
}

// HomePath returns the absolute path of name inside the user's home.
func (tc *TestContext) HomePath(name string) string {
	return filepath.Join(tc.MountPath, HomeDir, name)
}

// CreateTempDir creates a temporary directory and registers it for cleanup
func (tc *TestContext) CreateTempDir(prefix string) string {
	tc.T.Helper()

	dir, err := os.MkdirTemp("", prefix)
	if err != nil {
		tc.T.Fatalf("Failed to create temp directory: %v", err)
	}
	tc.tempDirs = append(tc.tempDirs, dir)
	return dir
}
