package function

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stratus-faas/stratus/internal/cache"
	"github.com/stratus-faas/stratus/utils"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// A deployed serverless Function. Definitions are immutable: a redeploy
// replaces the whole entry.
type Function struct {
	Name            string
	Runtime         string // example: python310
	Handler         string // example: "module.function_name"
	CustomImage     string // used if custom runtime is chosen
	TarFunctionCode string // base64-encoded tar with the handler code
	MemoryMB        int64
	CPUDemand       float64 // 1.0 -> 1 core
	MaxConcurrency  int     // max busy+idle execution contexts
	TimeoutSec      int     // per-invocation execution timeout
	QueueCapacity   int     // pending invocations admitted before rejection
	DesiredWarm     int     // warm contexts the supervisor keeps provisioned
}

func (f *Function) String() string {
	return f.Name
}

// Timeout returns the execution timeout as a duration.
func (f *Function) Timeout() time.Duration {
	return time.Duration(f.TimeoutSec) * time.Second
}

func (f *Function) getEtcdKey() string {
	return getEtcdKey(f.Name)
}

func getEtcdKey(funcName string) string {
	return fmt.Sprintf("/function/%s", funcName)
}

// GetFunction retrieves a Function given its name. If it doesn't exist, returns false.
func GetFunction(name string) (*Function, bool) {
	val, found := getFromCache(name)
	if !found {
		// cache miss
		f, response := getFromEtcd(name)
		if !response {
			return nil, false
		}
		cache.GetCacheInstance().Set(name, f, cache.DefaultExp)
		return f, true
	}

	return val, true
}

func getFromCache(name string) (*Function, bool) {
	localCache := cache.GetCacheInstance()
	f, found := localCache.Get(name)
	if !found {
		return nil, false
	}
	// return a safe copy of the cached definition
	function := *f.(*Function)
	return &function, true
}

func getFromEtcd(name string) (*Function, bool) {
	cli, err := utils.GetEtcdClient()
	if err != nil {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	getResponse, err := cli.Get(ctx, getEtcdKey(name))
	if err != nil || len(getResponse.Kvs) < 1 {
		return nil, false
	}

	var f Function
	err = json.Unmarshal(getResponse.Kvs[0].Value, &f)
	if err != nil {
		return nil, false
	}

	return &f, true
}

// SaveToEtcd registers the function to Etcd.
func (f *Function) SaveToEtcd() error {
	cli, err := utils.GetEtcdClient()
	if err != nil {
		return err
	}
	ctx := context.TODO()

	payload, err := json.Marshal(*f)
	if err != nil {
		return fmt.Errorf("could not marshal function: %v", err)
	}
	_, err = cli.Put(ctx, f.getEtcdKey(), string(payload))
	if err != nil {
		return fmt.Errorf("failed Put: %v", err)
	}

	cache.GetCacheInstance().Set(f.Name, f, cache.DefaultExp)

	return nil
}

// Delete removes a function from Etcd and the local cache.
func (f *Function) Delete() error {
	cli, err := utils.GetEtcdClient()
	if err != nil {
		return err
	}
	ctx := context.TODO()

	dresp, err := cli.Delete(ctx, f.getEtcdKey())
	if err != nil {
		return fmt.Errorf("failed Delete: %v", err)
	} else if dresp.Deleted != 1 {
		fmt.Printf("no function with key '%s' exists", f.getEtcdKey())
	}

	cache.GetCacheInstance().Delete(f.Name)

	return nil
}

// Exists checks if the function is already registered.
func (f *Function) Exists() bool {
	_, ok := GetFunction(f.Name)
	return ok
}

// GetAll returns all registered function names.
func GetAll() ([]string, error) {
	cli, err := utils.GetEtcdClient()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.TODO(), 10*time.Second)
	defer cancel()

	prefix := "/function"
	resp, err := cli.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}

	functions := make([]string, len(resp.Kvs))
	for i, s := range resp.Kvs {
		functions[i] = string(s.Key)[len(prefix+"/"):]
	}

	return functions, ctx.Err()
}
