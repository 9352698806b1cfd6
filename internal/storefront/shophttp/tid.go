package shophttp

import (
	"crypto/sha256"
	"fmt"
	"math/rand"
	"time"
)

// DefaultStoreID — публичный идентификатор магазина, участвует в подписи tid.
const DefaultStoreID = "62fa94df8c13af2e242eba16"

// SignTid строит tid-заголовок: sha256(storeID:timestampMillis:rand:sessionTid),
// формат "timestamp:rand:hex". Витрина проверяет подпись на каждом API-запросе.
func SignTid(storeID, sessionTid string) string {
	if storeID == "" {
		storeID = DefaultStoreID
	}
	ts := fmt.Sprintf("%d", time.Now().UnixMilli())
	r := fmt.Sprintf("%d", rand.Intn(1001))
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%s:%s", storeID, ts, r, sessionTid)))
	return fmt.Sprintf("%s:%s:%x", ts, r, sum)
}
