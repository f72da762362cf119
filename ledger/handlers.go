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
	"encoding/hex"
	"encoding/json"

	"github.com/aquariusluo/creditscore/common"
	"github.com/aquariusluo/creditscore/scoring"
	"github.com/gin-gonic/gin"
	provide "github.com/provideplatform/provide-go/common"
)

// AuthorizedAccountHeader carries the account authenticated by the upstream gateway
const AuthorizedAccountHeader = "X-Authorized-Account"

const authorizedAccountContextKey = "authorized_account"

type submitParams struct {
	Income  *int64 `json:"income"`
	Assets  *int64 `json:"assets"`
	History *int64 `json:"history"`

	IncomeCiphertext  *string `json:"income_ct"`
	AssetsCiphertext  *string `json:"assets_ct"`
	HistoryCiphertext *string `json:"history_ct"`
}

func (p *submitParams) encrypted() bool {
	return p.IncomeCiphertext != nil || p.AssetsCiphertext != nil || p.HistoryCiphertext != nil
}

type revealParams struct {
	DecryptionKey *string `json:"decryption_key"`
}

type grantParams struct {
	Validator *string `json:"validator"`
}

// InstallAPI registers the credit ledger API handlers with gin
func InstallAPI(r *gin.Engine, l *Ledger) {
	api := r.Group("/api/v1/credit")
	api.Use(RequireAuthorizedAccount())

	api.POST("/data", l.submitCreditDataHandler)

	api.GET("/score", l.getMyScoreHandler)
	api.POST("/score", l.computeMyScoreHandler)
	api.POST("/score/reveal", l.revealMyScoreHandler)

	api.GET("/accounts/:account", l.accountStatusHandler)
	api.GET("/accounts/:account/score", l.viewAuthorizedScoreHandler)
	api.POST("/accounts/:account/score/reveal", l.revealAuthorizedScoreHandler)

	api.GET("/grants", l.listGrantsHandler)
	api.POST("/grants", l.createGrantHandler)
	api.DELETE("/grants/:validator", l.deleteGrantHandler)
}

// RequireAuthorizedAccount rejects requests which do not carry the account
// asserted by the upstream authenticating gateway
func RequireAuthorizedAccount() gin.HandlerFunc {
	return func(c *gin.Context) {
		account := common.NormalizeAccount(c.GetHeader(AuthorizedAccountHeader))
		if account == "" {
			provide.RenderError("unauthorized", 401, c)
			c.Abort()
			return
		}

		c.Set(authorizedAccountContextKey, account)
		c.Next()
	}
}

func authorizedAccount(c *gin.Context) string {
	return c.GetString(authorizedAccountContextKey)
}

func errorStatus(err error) int {
	switch ErrorKind(err) {
	case KindRangeError:
		return 422
	case KindNotSubmitted, KindNotComputed, KindNotRevealed:
		return 409
	case KindUnauthorized:
		return 403
	case KindCapabilityFailure:
		return 502
	case KindInvalidAccount:
		return 400
	}
	return 500
}

func renderLedgerError(err error, c *gin.Context) {
	status := errorStatus(err)
	if status == 500 {
		common.Log.Warningf("ledger operation failed; %s", err.Error())
		provide.RenderError("internal persistence error", status, c)
		return
	}

	provide.Render(map[string]interface{}{
		"errors": []map[string]interface{}{
			{
				"kind":    ErrorKind(err),
				"message": err.Error(),
			},
		},
	}, status, c)
}

func decodeHexParam(field string, val *string) ([]byte, error) {
	if val == nil || *val == "" {
		return nil, nil
	}
	raw, err := hex.DecodeString(*val)
	if err != nil {
		return nil, scoring.Malformed(field)
	}
	return raw, nil
}

func (l *Ledger) submitCreditDataHandler(c *gin.Context) {
	buf, err := c.GetRawData()
	if err != nil {
		provide.RenderError(err.Error(), 400, c)
		return
	}

	params := &submitParams{}
	err = json.Unmarshal(buf, params)
	if err != nil {
		provide.RenderError(err.Error(), 422, c)
		return
	}

	account := authorizedAccount(c)

	if params.encrypted() {
		cts := make([][]byte, 0, 3)
		for _, attr := range []struct {
			field string
			val   *string
		}{
			{scoring.FieldIncome, params.IncomeCiphertext},
			{scoring.FieldAssets, params.AssetsCiphertext},
			{scoring.FieldHistory, params.HistoryCiphertext},
		} {
			ct, err := decodeHexParam(attr.field, attr.val)
			if err != nil {
				renderLedgerError(err, c)
				return
			}
			cts = append(cts, ct)
		}

		receipt, err := l.SubmitCreditData(account, cts[0], cts[1], cts[2])
		if err != nil {
			renderLedgerError(err, c)
			return
		}
		provide.Render(receipt, 201, c)
		return
	}

	if err := scoring.ValidatePresent(params.Income, params.Assets, params.History); err != nil {
		renderLedgerError(err, c)
		return
	}

	receipt, err := l.Submit(account, *params.Income, *params.Assets, *params.History)
	if err != nil {
		renderLedgerError(err, c)
		return
	}
	provide.Render(receipt, 201, c)
}

func (l *Ledger) computeMyScoreHandler(c *gin.Context) {
	receipt, err := l.ComputeMyScore(authorizedAccount(c))
	if err != nil {
		renderLedgerError(err, c)
		return
	}
	provide.Render(receipt, 200, c)
}

func (l *Ledger) getMyScoreHandler(c *gin.Context) {
	receipt, err := l.GetMyScore(authorizedAccount(c))
	if err != nil {
		renderLedgerError(err, c)
		return
	}
	provide.Render(receipt, 200, c)
}

func (l *Ledger) requireDecryptionKey(c *gin.Context) ([]byte, bool) {
	buf, err := c.GetRawData()
	if err != nil {
		provide.RenderError(err.Error(), 400, c)
		return nil, false
	}

	params := &revealParams{}
	err = json.Unmarshal(buf, params)
	if err != nil {
		provide.RenderError(err.Error(), 422, c)
		return nil, false
	}

	if params.DecryptionKey == nil || *params.DecryptionKey == "" {
		provide.RenderError("decryption_key required", 422, c)
		return nil, false
	}

	key, err := hex.DecodeString(*params.DecryptionKey)
	if err != nil {
		provide.RenderError("decryption_key must be hex-encoded", 422, c)
		return nil, false
	}
	return key, true
}

func (l *Ledger) revealMyScoreHandler(c *gin.Context) {
	key, ok := l.requireDecryptionKey(c)
	if !ok {
		return
	}

	receipt, err := l.RevealMyScore(authorizedAccount(c), key)
	if err != nil {
		renderLedgerError(err, c)
		return
	}
	provide.Render(receipt, 200, c)
}

func (l *Ledger) revealAuthorizedScoreHandler(c *gin.Context) {
	key, ok := l.requireDecryptionKey(c)
	if !ok {
		return
	}

	receipt, err := l.Reveal(c.Param("account"), authorizedAccount(c), key)
	if err != nil {
		renderLedgerError(err, c)
		return
	}
	provide.Render(receipt, 200, c)
}

func (l *Ledger) viewAuthorizedScoreHandler(c *gin.Context) {
	receipt, err := l.ViewAuthorizedScore(authorizedAccount(c), c.Param("account"))
	if err != nil {
		renderLedgerError(err, c)
		return
	}
	provide.Render(receipt, 200, c)
}

func (l *Ledger) accountStatusHandler(c *gin.Context) {
	status, err := l.Status(c.Param("account"))
	if err != nil {
		renderLedgerError(err, c)
		return
	}
	provide.Render(status, 200, c)
}

func (l *Ledger) listGrantsHandler(c *gin.Context) {
	owner := authorizedAccount(c)
	validators, err := l.Validators(owner)
	if err != nil {
		renderLedgerError(err, c)
		return
	}

	provide.Render(map[string]interface{}{
		"owner":      owner,
		"validators": validators,
		"root":       hex.EncodeToString(l.GrantsRoot()),
	}, 200, c)
}

func (l *Ledger) createGrantHandler(c *gin.Context) {
	buf, err := c.GetRawData()
	if err != nil {
		provide.RenderError(err.Error(), 400, c)
		return
	}

	params := &grantParams{}
	err = json.Unmarshal(buf, params)
	if err != nil {
		provide.RenderError(err.Error(), 422, c)
		return
	}

	if params.Validator == nil || *params.Validator == "" {
		provide.RenderError("validator required", 422, c)
		return
	}

	receipt, err := l.GrantValidatorAccess(authorizedAccount(c), *params.Validator)
	if err != nil {
		renderLedgerError(err, c)
		return
	}
	provide.Render(receipt, 200, c)
}

func (l *Ledger) deleteGrantHandler(c *gin.Context) {
	receipt, err := l.RevokeValidatorAccess(authorizedAccount(c), c.Param("validator"))
	if err != nil {
		renderLedgerError(err, c)
		return
	}
	provide.Render(receipt, 200, c)
}
