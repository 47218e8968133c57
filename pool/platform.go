package pool

import (
	"sync"

	scriptruntime "github.com/vegaviz/script-runtime"
)

// platformGuards holds one init guard per engine factory. Guards are
// process-wide: a platform initializes at most once no matter how many
// pools share the factory.
var platformGuards sync.Map // scriptruntime.EngineFactory -> *sync.Once

// ensurePlatformInitialized runs the factory's one-time platform setup.
// Engine runtimes can inherit platform state at thread creation (V8-style
// JIT page permissions), so the only caller is the pool's spawn path: it
// runs on the goroutine about to create every worker, strictly before the
// first of them exists. There is no other way to create a worker.
func ensurePlatformInitialized(f scriptruntime.EngineFactory) {
	guard, _ := platformGuards.LoadOrStore(f, new(sync.Once))
	guard.(*sync.Once).Do(f.InitPlatform)
}
