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

	"github.com/aquariusluo/creditscore/common"
	natsutil "github.com/kthomas/go-natsutil"
)

const defaultNatsStream = "creditscore"

const notificationSubjectPrefix = "creditscore.notification"

const (
	EventDataSubmitted = "data.submitted"
	EventScoreComputed = "score.computed"
	EventScoreRevealed = "score.revealed"
	EventAccessGranted = "access.granted"
	EventAccessRevoked = "access.revoked"
)

// Notifier dispatches ledger events to the given account
type Notifier interface {
	Notify(account, event string, payload map[string]interface{}) error
}

// NATSNotifier publishes events to NATS JetStream
type NATSNotifier struct{}

// InitNATSNotifier establishes the shared NATS connection and ensures the
// stream covering notification subjects exists
func InitNATSNotifier() *NATSNotifier {
	natsutil.EstablishSharedNatsConnection(nil)
	natsutil.NatsCreateStream(defaultNatsStream, []string{
		fmt.Sprintf("%s.>", defaultNatsStream),
	})
	return &NATSNotifier{}
}

// Notify publishes the event on the account's notification subject
func (n *NATSNotifier) Notify(account, event string, payload map[string]interface{}) error {
	if account == "" || event == "" {
		return fmt.Errorf("failed to dispatch event notification; account and event required")
	}

	if payload == nil {
		payload = map[string]interface{}{}
	}
	payload["account"] = account
	payload["event"] = event

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s notification; %s", event, err.Error())
	}

	_, err = natsutil.NatsJetstreamPublish(notificationSubject(account, event), raw)
	return err
}

// notificationSubject returns the namespaced subject for an account event
func notificationSubject(account, event string) string {
	return fmt.Sprintf("%s.%s.%s", notificationSubjectPrefix, account, event)
}

// dispatchNotification never fails the calling operation
func (l *Ledger) dispatchNotification(account, event string, payload map[string]interface{}) {
	if l.notifier == nil {
		return
	}

	err := l.notifier.Notify(account, event, payload)
	if err != nil {
		common.Log.Warningf("failed to dispatch %s notification for %s; %s", event, account, err.Error())
	}
}
