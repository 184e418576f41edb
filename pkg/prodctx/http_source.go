/*
 * Copyright 2026 LinePulse Systems, Inc.
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

package prodctx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/linepulse/linepulse/pkg/models"
)

const defaultSourceTimeout = 10 * time.Second

// HTTPSource fetches production context from the scheduling service over
// HTTP. The endpoint is GET {baseURL}/equipment/{id}/context returning a
// ProductionContext JSON document.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

// NewHTTPSource creates a context source against the given base URL.
func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = defaultSourceTimeout
	}

	return &HTTPSource{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// FetchContext implements Source.
func (s *HTTPSource) FetchContext(ctx context.Context, equipmentID string) (models.ProductionContext, error) {
	endpoint := fmt.Sprintf("%s/equipment/%s/context", s.baseURL, url.PathEscape(equipmentID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return models.ProductionContext{}, fmt.Errorf("failed to build context request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return models.ProductionContext{}, fmt.Errorf("context fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.ProductionContext{}, fmt.Errorf("context fetch returned status %d", resp.StatusCode)
	}

	var pctx models.ProductionContext

	if err := json.NewDecoder(resp.Body).Decode(&pctx); err != nil {
		return models.ProductionContext{}, fmt.Errorf("failed to decode context response: %w", err)
	}

	pctx.EquipmentID = equipmentID

	if pctx.CapturedAt.IsZero() {
		pctx.CapturedAt = time.Now()
	}

	return pctx, nil
}
