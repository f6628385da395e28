package adplatform

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

func (c *client) CreatePin(ctx context.Context, accessToken string, req PinCreate) (Pin, error) {
	media := map[string]any{}
	switch {
	case req.VideoMediaID != "":
		media["media_source"] = map[string]any{
			"source_type": "video_id",
			"media_id":    req.VideoMediaID,
		}
	case req.ImageBase64 != "":
		media["media_source"] = map[string]any{
			"source_type":  "image_base64",
			"content_type": "image/png",
			"data":         req.ImageBase64,
		}
	default:
		media["media_source"] = map[string]any{
			"source_type": "image_url",
			"url":         req.ImageURL,
		}
	}

	body := map[string]any{
		"board_id":     req.BoardID,
		"title":        req.Title,
		"description":  req.Description,
		"link":         req.LinkURL,
		"media_source": media["media_source"],
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := c.http.DoJSON(ctx, http.MethodPost, c.url("/v5/pins"), bearer(accessToken), body, &out); err != nil {
		return Pin{}, fmt.Errorf("adplatform: create pin: %w", err)
	}
	return Pin{ID: out.ID}, nil
}

func (c *client) RegisterMediaUpload(ctx context.Context, accessToken, adAccountID string) (MediaUpload, error) {
	path := fmt.Sprintf("/v5/ad_accounts/%s/media", adAccountID)
	body := map[string]any{"media_type": "video"}

	var out struct {
		MediaID          string            `json:"media_id"`
		UploadURL        string            `json:"upload_url"`
		UploadParameters map[string]string `json:"upload_parameters"`
	}
	if err := c.http.DoJSON(ctx, http.MethodPost, c.url(path), bearer(accessToken), body, &out); err != nil {
		return MediaUpload{}, fmt.Errorf("adplatform: register media upload: %w", err)
	}
	return MediaUpload{
		MediaID:          out.MediaID,
		UploadURL:        out.UploadURL,
		UploadParameters: out.UploadParameters,
	}, nil
}

// UploadMedia posts mediaBytes as multipart form data directly to the
// signed uploadURL returned by RegisterMediaUpload, per the ad platform's
// "multipart to signed URL" media upload protocol (§6).
func (c *client) UploadMedia(ctx context.Context, uploadURL string, uploadParameters map[string]string, mediaBytes []byte, filename string) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range uploadParameters {
		if err := w.WriteField(k, v); err != nil {
			return fmt.Errorf("adplatform: write upload field %s: %w", k, err)
		}
	}
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("adplatform: create media form file: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(mediaBytes)); err != nil {
		return fmt.Errorf("adplatform: write media bytes: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("adplatform: close media multipart writer: %w", err)
	}

	if _, err := c.http.DoRaw(ctx, http.MethodPost, uploadURL, nil, w.FormDataContentType(), buf.Bytes()); err != nil {
		return fmt.Errorf("adplatform: upload media: %w", err)
	}
	return nil
}

func (c *client) PollMediaStatus(ctx context.Context, accessToken, adAccountID, mediaID string) (MediaStatus, error) {
	path := fmt.Sprintf("/v5/ad_accounts/%s/media/%s", adAccountID, mediaID)
	var out struct {
		Status string `json:"status"`
	}
	if err := c.http.DoJSON(ctx, http.MethodGet, c.url(path), bearer(accessToken), nil, &out); err != nil {
		return MediaStatus{}, fmt.Errorf("adplatform: poll media %s: %w", mediaID, err)
	}
	return MediaStatus{Status: out.Status}, nil
}

func (c *client) CreateAds(ctx context.Context, accessToken, adAccountID string, reqs []AdCreate) ([]AdResult, error) {
	path := fmt.Sprintf("/v5/ad_accounts/%s/ads", adAccountID)
	items := make([]map[string]any, 0, len(reqs))
	for _, r := range reqs {
		items = append(items, map[string]any{
			"ad_group_id": r.AdGroupID,
			"pin_id":      r.PinID,
			"name":        r.Name,
			"status":      "ACTIVE",
		})
	}
	body := map[string]any{"ads": items}

	var out struct {
		Items []struct {
			ID      string `json:"id"`
			Success bool   `json:"success"`
			Error   string `json:"error"`
		} `json:"items"`
	}
	if err := c.http.DoJSON(ctx, http.MethodPost, c.url(path), bearer(accessToken), body, &out); err != nil {
		return nil, fmt.Errorf("adplatform: create ads: %w", err)
	}
	results := make([]AdResult, 0, len(out.Items))
	for _, i := range out.Items {
		results = append(results, AdResult{AdID: i.ID, Success: i.Success, Error: i.Error})
	}
	return results, nil
}

func (c *client) Analytics(ctx context.Context, accessToken, adAccountID string, req AnalyticsRequest) (map[string]CampaignAnalytics, error) {
	path := fmt.Sprintf(
		"/v5/ad_accounts/%s/campaigns/analytics?start_date=%s&end_date=%s&granularity=TOTAL&columns=SPEND_IN_MICRO_DOLLAR,TOTAL_CONVERSIONS,TOTAL_CONVERSIONS_VALUE_IN_MICRO_DOLLAR",
		adAccountID,
		req.Start.Format("2006-01-02"),
		req.End.Format("2006-01-02"),
	)
	for _, id := range req.CampaignIDs {
		path += "&campaign_ids=" + id
	}

	var out []struct {
		CampaignID                        string `json:"CAMPAIGN_ID"`
		SpendInMicroDollar                int64  `json:"SPEND_IN_MICRO_DOLLAR"`
		TotalConversions                  int    `json:"TOTAL_CONVERSIONS"`
		TotalConversionsValueInMicroDollar int64 `json:"TOTAL_CONVERSIONS_VALUE_IN_MICRO_DOLLAR"`
	}
	if err := c.http.DoJSON(ctx, http.MethodGet, c.url(path), bearer(accessToken), nil, &out); err != nil {
		return nil, fmt.Errorf("adplatform: analytics: %w", err)
	}

	result := make(map[string]CampaignAnalytics, len(out))
	for _, row := range out {
		result[row.CampaignID] = CampaignAnalytics{
			SpendMicro:                 row.SpendInMicroDollar,
			TotalConversions:           row.TotalConversions,
			TotalConversionsValueMicro: row.TotalConversionsValueInMicroDollar,
		}
	}
	return result, nil
}

func (c *client) ListBoards(ctx context.Context, accessToken, adAccountID string) ([]Board, error) {
	path := fmt.Sprintf("/v5/ad_accounts/%s/boards", adAccountID)
	var out struct {
		Items []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"items"`
	}
	if err := c.http.DoJSON(ctx, http.MethodGet, c.url(path), bearer(accessToken), nil, &out); err != nil {
		return nil, fmt.Errorf("adplatform: list boards: %w", err)
	}
	boards := make([]Board, 0, len(out.Items))
	for _, b := range out.Items {
		boards = append(boards, Board{ID: b.ID, Name: b.Name})
	}
	return boards, nil
}
