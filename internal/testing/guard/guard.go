package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("AWIBI_TEST_MODE") == "" {
			_ = os.Setenv("AWIBI_TEST_MODE", "1")
		}
	})
}
