package nativehost

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"searchq/internal/logging"
	"searchq/internal/nativemsg"
)

// Tab is the subset of browser tab state the host needs.
type Tab struct {
	ID       int    `json:"id"`
	URL      string `json:"url"`
	Pinned   bool   `json:"pinned"`
	Active   bool   `json:"active"`
	WindowID int    `json:"windowId"`
}

// TabController drives browser tabs.
type TabController interface {
	Query(ctx context.Context, url string) ([]Tab, error)
	Create(ctx context.Context, url string, pinned bool) (Tab, error)
	Activate(ctx context.Context, tabID int) error
}

type tabsQueryParams struct {
	URL string `json:"url"`
}

type tabsCreateParams struct {
	URL    string `json:"url"`
	Pinned bool   `json:"pinned"`
}

type tabsUpdateParams struct {
	TabID  int  `json:"tabId"`
	Active bool `json:"active"`
}

// Query lists tabs showing url.
func (h *Host) Query(ctx context.Context, url string) ([]Tab, error) {
	raw, err := h.call(ctx, nativemsg.TypeTabsQuery, tabsQueryParams{URL: url})
	if err != nil {
		return nil, err
	}
	var tabs []Tab
	if len(raw) == 0 {
		return tabs, nil
	}
	if err := json.Unmarshal(raw, &tabs); err != nil {
		return nil, fmt.Errorf("decode tabs.query result: %w", err)
	}
	return tabs, nil
}

// Create opens a new tab.
func (h *Host) Create(ctx context.Context, url string, pinned bool) (Tab, error) {
	raw, err := h.call(ctx, nativemsg.TypeTabsCreate, tabsCreateParams{URL: url, Pinned: pinned})
	if err != nil {
		return Tab{}, err
	}
	var tab Tab
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &tab); err != nil {
			return Tab{}, fmt.Errorf("decode tabs.create result: %w", err)
		}
	}
	return tab, nil
}

// Activate focuses an existing tab.
func (h *Host) Activate(ctx context.Context, tabID int) error {
	_, err := h.call(ctx, nativemsg.TypeTabsUpdate, tabsUpdateParams{TabID: tabID, Active: true})
	return err
}

// OpenManager activates the pinned management tab, creating it when no pinned
// tab shows managerURL.
func OpenManager(ctx context.Context, tabs TabController, managerURL string, logger *slog.Logger) error {
	if logger == nil {
		logger = logging.NewNop()
	}
	open, err := tabs.Query(ctx, managerURL)
	if err != nil {
		return fmt.Errorf("find management tab: %w", err)
	}
	for _, tab := range open {
		if !tab.Pinned {
			continue
		}
		if err := tabs.Activate(ctx, tab.ID); err != nil {
			return fmt.Errorf("activate management tab: %w", err)
		}
		logger.Info("management tab activated",
			logging.TabID(tab.ID),
			logging.String(logging.FieldEventType, "manager_tab_activated"))
		return nil
	}
	tab, err := tabs.Create(ctx, managerURL, true)
	if err != nil {
		return fmt.Errorf("create management tab: %w", err)
	}
	logger.Info("management tab created",
		logging.TabID(tab.ID),
		logging.String("url", managerURL),
		logging.String(logging.FieldEventType, "manager_tab_created"))
	return nil
}
