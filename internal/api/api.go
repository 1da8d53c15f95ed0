package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/lithammer/shortuuid"
	"github.com/stratus-faas/stratus/internal/client"
	"github.com/stratus-faas/stratus/internal/config"
	"github.com/stratus-faas/stratus/internal/function"
	"github.com/stratus-faas/stratus/internal/pool"
	"github.com/stratus-faas/stratus/internal/scheduling"
	"github.com/stratus-faas/stratus/utils"
)

var sched *scheduling.Scheduler
var pools *pool.Manager

// Init wires the handlers to the scheduling subsystem.
func Init(s *scheduling.Scheduler, m *pool.Manager) {
	sched = s
	pools = m
}

// GetFunctions handles a request to list the functions available in the system.
func GetFunctions(c echo.Context) error {
	list, err := function.GetAll()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "")
	}
	return c.JSON(http.StatusOK, list)
}

// InvokeFunction handles a function invocation request.
func InvokeFunction(c echo.Context) error {
	funcName := c.Param("fun")
	fun, ok := function.GetFunction(funcName)
	if !ok {
		log.Printf("Dropping request for unknown function '%s'", funcName)
		return c.JSON(http.StatusNotFound, "")
	}

	var invocationRequest client.InvocationRequest
	err := json.NewDecoder(c.Request().Body).Decode(&invocationRequest)
	if err != nil && err != io.EOF {
		log.Printf("Could not parse request: %v", err)
		return c.String(http.StatusBadRequest, "could not parse request")
	}

	now := time.Now()
	inv := &function.Invocation{
		Id:       fmt.Sprintf("%s-%s", fun.Name, shortuuid.New()),
		Fun:      fun,
		Params:   invocationRequest.Params,
		Arrival:  now,
		Deadline: now.Add(fun.Timeout()),
		Async:    invocationRequest.Async,
	}

	handle, err := sched.Submit(inv)
	if errors.Is(err, scheduling.ErrQueueFull) {
		return c.String(http.StatusTooManyRequests, "")
	} else if err != nil {
		log.Printf("Submission failed: %v", err)
		return c.String(http.StatusInternalServerError, "")
	}

	if inv.Async {
		return c.JSON(http.StatusOK, function.AsyncResponse{ReqId: inv.Id})
	}

	status, err := handle.Wait(c.Request().Context())
	switch status {
	case function.StatusSucceeded:
		return c.JSON(http.StatusOK, function.Response{Success: true, Status: status, ExecutionReport: inv.Report})
	case function.StatusTimedOut:
		return c.JSON(http.StatusRequestTimeout, function.Response{Success: false, Status: status, ExecutionReport: inv.Report})
	case function.StatusCanceled:
		return c.JSON(http.StatusConflict, function.Response{Success: false, Status: status})
	default:
		if err != nil {
			log.Printf("Invocation %s failed: %v", inv.Id, err)
		}
		return c.JSON(http.StatusInternalServerError, function.Response{Success: false, Status: status, ExecutionReport: inv.Report})
	}
}

// CreateFunction handles a function registration request. Definitions are
// immutable: creating an existing function is rejected.
func CreateFunction(c echo.Context) error {
	var f function.Function
	err := json.NewDecoder(c.Request().Body).Decode(&f)
	if err != nil && err != io.EOF {
		return c.String(http.StatusBadRequest, "could not parse request")
	}

	if f.Name == "" {
		return c.String(http.StatusBadRequest, "missing function name")
	}
	if f.Exists() {
		return c.String(http.StatusConflict, "function already exists; delete it first to redeploy")
	}

	applyDefaults(&f)

	err = f.SaveToEtcd()
	if err != nil {
		log.Printf("Failed creation: %v", err)
		return c.String(http.StatusServiceUnavailable, "")
	}

	log.Printf("Registered function '%s' (runtime: %s, maxConcurrency: %d)", f.Name, f.Runtime, f.MaxConcurrency)
	response := struct{ Created string }{f.Name}
	return c.JSON(http.StatusOK, response)
}

func applyDefaults(f *function.Function) {
	if f.MaxConcurrency <= 0 {
		f.MaxConcurrency = config.GetInt(config.FUNCTION_MAX_CONCURRENCY, 10)
	}
	if f.TimeoutSec <= 0 {
		f.TimeoutSec = config.GetInt(config.FUNCTION_TIMEOUT_SEC, 30)
	}
	if f.QueueCapacity <= 0 {
		f.QueueCapacity = config.GetInt(config.QUEUE_CAPACITY, 100)
	}
	if f.MemoryMB <= 0 {
		f.MemoryMB = 128
	}
}

// DeleteFunction handles a function deletion request, destroying its pool.
func DeleteFunction(c echo.Context) error {
	var f function.Function
	err := json.NewDecoder(c.Request().Body).Decode(&f)
	if err != nil && err != io.EOF {
		return c.String(http.StatusBadRequest, "could not parse request")
	}

	fun, ok := function.GetFunction(f.Name)
	if !ok {
		return c.JSON(http.StatusNotFound, "")
	}

	err = fun.Delete()
	if err != nil {
		log.Printf("Failed deletion: %v", err)
		return c.String(http.StatusServiceUnavailable, "")
	}
	pools.RemovePool(fun.Name)

	log.Printf("Deleted function '%s'", fun.Name)
	response := struct{ Deleted string }{fun.Name}
	return c.JSON(http.StatusOK, response)
}

// GetInvocationStatus reports the current status of an invocation.
func GetInvocationStatus(c echo.Context) error {
	reqId := c.Param("reqId")
	status, ok := sched.Status(reqId)
	if !ok {
		return c.JSON(http.StatusNotFound, "")
	}
	response := struct {
		ReqId  string
		Status function.Status
	}{reqId, status}
	return c.JSON(http.StatusOK, response)
}

// CancelInvocation cancels a queued or running invocation.
func CancelInvocation(c echo.Context) error {
	reqId := c.Param("reqId")
	err := sched.Cancel(reqId)
	if errors.Is(err, scheduling.ErrNotFound) {
		return c.JSON(http.StatusNotFound, "")
	}
	return c.JSON(http.StatusOK, "")
}

// PollAsyncResult checks for the result of an asynchronous invocation.
func PollAsyncResult(c echo.Context) error {
	reqId := c.Param("reqId")
	if len(reqId) < 1 {
		return c.JSON(http.StatusNotFound, "")
	}

	etcdClient, err := utils.GetEtcdClient()
	if err != nil {
		log.Println("Could not connect to Etcd")
		return c.JSON(http.StatusInternalServerError, "")
	}

	ctx := context.Background()

	key := fmt.Sprintf("async/%s", reqId)
	res, err := etcdClient.Get(ctx, key)
	if err != nil {
		log.Println(err)
		return c.JSON(http.StatusInternalServerError, "")
	}

	if len(res.Kvs) == 1 {
		payload := res.Kvs[0].Value
		return c.JSONBlob(http.StatusOK, payload)
	}
	return c.JSON(http.StatusNotFound, "")
}

// PrewarmFunction provisions warm contexts ahead of traffic.
func PrewarmFunction(c echo.Context) error {
	var req client.PrewarmRequest
	err := json.NewDecoder(c.Request().Body).Decode(&req)
	if err != nil && err != io.EOF {
		return c.String(http.StatusBadRequest, "could not parse request")
	}

	fun, ok := function.GetFunction(req.Function)
	if !ok {
		return c.JSON(http.StatusNotFound, "")
	}

	pools.GetPool(fun).Prewarm(req.Instances)
	_, idle := pools.GetPool(fun).Counts()
	response := struct {
		Function string
		Warm     int
	}{fun.Name, idle}
	return c.JSON(http.StatusOK, response)
}

// GetServerStatus reports queue depths, context counts and concurrency
// utilization for every function with traffic.
func GetServerStatus(c echo.Context) error {
	response := struct {
		Functions map[string]scheduling.FunctionStats
		WarmPool  map[string]int
	}{
		Functions: sched.Snapshot(),
		WarmPool:  pools.WarmStatus(),
	}
	return c.JSON(http.StatusOK, response)
}
