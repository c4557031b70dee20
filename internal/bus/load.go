package bus

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/aergo-project/aergo-core/internal/cmn"
	"github.com/aergo-project/aergo-core/internal/moduleapi"
	"github.com/aergo-project/aergo-core/internal/nlog"
)

// Initialize enumerates modulesDir, asks the ModuleLoader to load each
// file, registers every successfully loaded module whose API version
// matches, and then auto-creates every loaded module whose manifest
// declares auto_create and whose every consumer is AutoAll (§4.3.1).
func (b *Bus) Initialize(modulesDir, dataDir string) error {
	entries, err := os.ReadDir(modulesDir)
	if err != nil {
		return err
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(modulesDir, e.Name())
		b.loadOne(path, dataDir)
	}

	b.mu.Lock()
	candidates := make([]LoadedModuleID, len(b.loaded))
	for i := range b.loaded {
		candidates[i] = LoadedModuleID(i)
	}
	b.mu.Unlock()

	for _, id := range candidates {
		b.autoCreateIfEligible(id)
	}
	return nil
}

func (b *Bus) loadOne(path, dataDir string) {
	plugin, err := b.loader.Load(path)
	if err != nil {
		nlog.Warningf("load %s: %v", path, err)
		return
	}
	if plugin.APIVersion != moduleapi.CoreAPIVersion {
		err := &cmn.ErrAPIMismatch{Module: path, CoreVersion: moduleapi.CoreAPIVersion, PluginVersion: plugin.APIVersion}
		nlog.Warningf("load %s: %v, skipped", path, err)
		return
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	modDataDir := filepath.Join(dataDir, stem)
	hasDataDir := false
	if fi, err := os.Stat(modDataDir); err == nil && fi.IsDir() {
		hasDataDir = true
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.loaded = append(b.loaded, LoadedModule{
		Name:       stem,
		DataDir:    modDataDir,
		HasDataDir: hasDataDir,
		Manifest:   plugin.Manifest,
		APIVersion: plugin.APIVersion,
		Create:     plugin.Create,
		Destroy:    plugin.Destroy,
	})
}

// autoCreateIfEligible calls AddModule(id, EmptyBindings()) if the
// loaded module declares auto_create and every one of its consumers has
// AutoAll cardinality (both preconditions required; otherwise logged and
// skipped).
func (b *Bus) autoCreateIfEligible(id LoadedModuleID) {
	b.mu.Lock()
	lm := b.loaded[id]
	b.mu.Unlock()

	if !lm.Manifest.AutoCreate {
		return
	}
	for _, c := range lm.Manifest.SubscribeConsumers {
		if c.Cardinality.Kind != moduleapi.AutoAll {
			nlog.Warningf("auto_create(%s): skipped, has a non-AutoAll subscribe consumer", lm.Name)
			return
		}
	}
	for _, c := range lm.Manifest.RequestConsumers {
		if c.Cardinality.Kind != moduleapi.AutoAll {
			nlog.Warningf("auto_create(%s): skipped, has a non-AutoAll request consumer", lm.Name)
			return
		}
	}

	if _, ok := b.AddModule(id, moduleapi.EmptyBindings()); !ok {
		nlog.Warningf("auto_create(%s): add_module failed", lm.Name)
	}
}
