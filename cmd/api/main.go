/*
 * Copyright 2017-2022 Provide Technologies Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/aquariusluo/creditscore/acl"
	"github.com/aquariusluo/creditscore/audit"
	"github.com/aquariusluo/creditscore/common"
	"github.com/aquariusluo/creditscore/fhe/providers"
	"github.com/aquariusluo/creditscore/ledger"
	"github.com/aquariusluo/creditscore/store"
	"github.com/gin-gonic/gin"
	provide "github.com/provideplatform/provide-go/common"
)

const shutdownTimeout = 15 * time.Second

func main() {
	common.RequireCustodyKey()

	l, err := initLedger()
	if err != nil {
		common.Log.Panicf("failed to initialize ledger; %s", err.Error())
	}

	var wg sync.WaitGroup
	ledger.RequireConsumers(l, &wg)

	srv := &http.Server{
		Addr:    common.ListenAddr,
		Handler: initRouter(l),
	}

	go func() {
		common.Log.Debugf("listening on %s", common.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			common.Log.Panicf("failed to serve credit ledger API; %s", err.Error())
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	common.Log.Debug("shutting down credit ledger API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		common.Log.Warningf("failed to gracefully shut down credit ledger API; %s", err.Error())
	}
}

func initRouter(l *ledger.Ledger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/status", statusHandler)
	ledger.InstallAPI(r, l)

	return r
}

func initLedger() (*ledger.Ledger, error) {
	provider, err := providers.ProviderFactory(common.CiphertextProvider, &common.Curve, common.CiphertextPublicKey)
	if err != nil {
		return nil, err
	}

	storeProvider, err := store.StoreProviderFactory(common.StoreProvider)
	if err != nil {
		return nil, err
	}

	registry, err := acl.InitRegistry(storeProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize access control registry; %s", err.Error())
	}

	trail, err := audit.LoadTrail(storeProvider)
	if err != nil {
		return nil, err
	}

	opts := []ledger.Option{
		ledger.WithAuditTrail(trail),
		ledger.WithCustodyKey(common.CustodyDecryptionKey),
	}
	if common.PublishNotifications {
		opts = append(opts, ledger.WithNotifier(ledger.InitNATSNotifier()))
	}

	common.Log.Debugf("initialized %s ledger with %s store", common.CiphertextProvider, common.StoreProvider)
	return ledger.InitLedger(provider, store.InitStore(storeProvider), registry, opts...), nil
}

func statusHandler(c *gin.Context) {
	provide.Render(map[string]interface{}{
		"status":   "ok",
		"provider": common.CiphertextProvider,
		"store":    common.StoreProvider,
	}, 200, c)
}
