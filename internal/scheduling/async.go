package scheduling

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/stratus-faas/stratus/internal/function"
	"github.com/stratus-faas/stratus/utils"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// PublishAsyncResponse stores the outcome of an asynchronous invocation so
// the caller can poll for it. Results expire after 30 minutes.
func PublishAsyncResponse(reqId string, response function.Response) {
	etcdClient, err := utils.GetEtcdClient()
	if err != nil {
		log.Printf("Could not publish async response: etcd client not available")
		return
	}

	ctx := context.Background()

	resp, err := etcdClient.Grant(ctx, 1800) // 30 min
	if err != nil {
		log.Printf("Could not get etcd lease: %v", err)
		return
	}

	key := fmt.Sprintf("async/%s", reqId)
	payload, err := json.Marshal(response)
	if err != nil {
		log.Printf("Could not marshal response: %v", err)
		return
	}

	_, err = etcdClient.Put(ctx, key, string(payload), clientv3.WithLease(resp.ID))
	if err != nil {
		log.Printf("Could not store async response: %v", err)
		return
	}
}
