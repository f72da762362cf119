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

package ledger

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/aquariusluo/creditscore/common"
	natsutil "github.com/kthomas/go-natsutil"
	"github.com/nats-io/nats.go"
)

const natsComputeScoreSubject = "creditscore.score.compute.pending"
const natsComputeScoreMaxInFlight = 64
const computeScoreAckWait = time.Minute * 1
const computeScoreMaxDeliveries = 5

// RequireConsumers subscribes the ledger to asynchronous score computation
// requests when NATS streaming subscriptions are enabled
func RequireConsumers(l *Ledger, wg *sync.WaitGroup) {
	if !common.ConsumeNATSStreamingSubscriptions {
		common.Log.Debug("ledger package consumer configured to skip NATS streaming subscription setup")
		return
	}

	natsutil.EstablishSharedNatsConnection(nil)
	natsutil.NatsCreateStream(defaultNatsStream, []string{
		fmt.Sprintf("%s.>", defaultNatsStream),
	})

	createNatsComputeScoreSubscriptions(l, wg)
}

func createNatsComputeScoreSubscriptions(l *Ledger, wg *sync.WaitGroup) {
	for i := uint64(0); i < natsutil.GetNatsConsumerConcurrency(); i++ {
		natsutil.RequireNatsJetstreamSubscription(wg,
			computeScoreAckWait,
			natsComputeScoreSubject,
			natsComputeScoreSubject,
			natsComputeScoreSubject,
			l.consumeComputeScoreMsg,
			computeScoreAckWait,
			natsComputeScoreMaxInFlight,
			computeScoreMaxDeliveries,
			nil,
		)
	}
}

func (l *Ledger) consumeComputeScoreMsg(msg *nats.Msg) {
	defer func() {
		if r := recover(); r != nil {
			common.Log.Warningf("recovered during score computation; %s", r)
			msg.Nak()
		}
	}()

	common.Log.Debugf("consuming %d-byte NATS score computation message on subject: %s", len(msg.Data), msg.Subject)

	if l.handleComputeScoreMessage(msg.Data) {
		msg.Ack()
	} else {
		msg.Nak()
	}
}

// handleComputeScoreMessage returns true if the message should be acked;
// only failures which may succeed on redelivery are nacked
func (l *Ledger) handleComputeScoreMessage(data []byte) bool {
	params := map[string]interface{}{}
	err := json.Unmarshal(data, &params)
	if err != nil {
		common.Log.Warningf("failed to unmarshal score computation message; %s", err.Error())
		return true
	}

	account, ok := params["account"].(string)
	if !ok || account == "" {
		common.Log.Warning("failed to unmarshal account during score computation message handler")
		return true
	}

	receipt, err := l.ComputeScore(account)
	if err != nil {
		switch ErrorKind(err) {
		case KindCapabilityFailure, KindInternal:
			common.Log.Warningf("score computation failed for %s; %s", account, err.Error())
			return false
		default:
			common.Log.Debugf("dropping score computation request for %s; %s", account, err.Error())
			return true
		}
	}

	common.Log.Debugf("asynchronous score computation completed for %s at generation %d", receipt.Account, receipt.Generation)
	return true
}
