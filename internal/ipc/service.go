package ipc

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"searchq/internal/api"
	"searchq/internal/daemon"
	"searchq/internal/logging"
	"searchq/internal/settings"
)

// shutdownDelay lets the Stop reply reach the caller before the hosting
// process starts closing sockets.
const shutdownDelay = 100 * time.Millisecond

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) callContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(s.ctx, callTimeout)
}

func (s *service) Start(_ StartRequest, resp *StartResponse) error {
	s.logger.Debug("daemon start requested")
	if err := s.daemon.Start(s.ctx); err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.Message = "daemon started"
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.logger.Info("daemon stop requested", logging.String(logging.FieldEventType, "daemon_stop_requested"))
	s.daemon.Stop()
	time.AfterFunc(shutdownDelay, s.daemon.RequestShutdown)
	resp.Stopped = true
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	ctx, cancel := s.callContext()
	defer cancel()
	*resp = s.daemon.Status(ctx)
	return nil
}

func (s *service) QueueView(req QueueViewRequest, resp *api.QueueView) error {
	ctx, cancel := s.callContext()
	defer cancel()
	var ordering settings.Ordering
	if req.Ordering != "" {
		parsed, err := settings.ParseOrdering(req.Ordering)
		if err != nil {
			return err
		}
		ordering = parsed
	}
	view, err := s.daemon.View(ctx, ordering)
	if err != nil {
		return err
	}
	*resp = view
	return nil
}

func (s *service) QueueList(_ QueueListRequest, resp *QueueListResponse) error {
	ctx, cancel := s.callContext()
	defer cancel()
	rows, err := s.daemon.List(ctx)
	if err != nil {
		return err
	}
	resp.Rows = rows
	return nil
}

func (s *service) QueueDescribe(req QueueDescribeRequest, resp *api.QueryRow) error {
	ctx, cancel := s.callContext()
	defer cancel()
	row, err := s.daemon.Describe(ctx, req.Ref)
	if err != nil {
		return err
	}
	*resp = row
	return nil
}

func (s *service) QueueAdd(req api.AddRequest, resp *api.QueryRow) error {
	ctx, cancel := s.callContext()
	defer cancel()
	row, err := s.daemon.Add(ctx, req)
	if err != nil {
		return err
	}
	*resp = row
	return nil
}

func (s *service) QueueAppend(req QueueAppendRequest, resp *QueueAppendResponse) error {
	ctx, cancel := s.callContext()
	defer cancel()
	rec, err := s.daemon.Append(ctx, req.Record)
	if err != nil {
		return err
	}
	resp.Record = *rec
	return nil
}

func (s *service) QueueEdit(req api.EditRequest, resp *api.QueryRow) error {
	ctx, cancel := s.callContext()
	defer cancel()
	row, err := s.daemon.Edit(ctx, req)
	if err != nil {
		return err
	}
	*resp = row
	return nil
}

func (s *service) QueueRemove(req QueueRemoveRequest, resp *QueueRemoveResponse) error {
	ctx, cancel := s.callContext()
	defer cancel()
	if err := s.daemon.Remove(ctx, req.Ref); err != nil {
		return err
	}
	resp.Removed = true
	return nil
}

func (s *service) QueueClear(_ QueueClearRequest, resp *api.ClearResult) error {
	ctx, cancel := s.callContext()
	defer cancel()
	result, err := s.daemon.Clear(ctx)
	if err != nil {
		return err
	}
	*resp = result
	return nil
}

func (s *service) QueueSearch(req api.SearchRequest, resp *api.SearchResult) error {
	ctx, cancel := s.callContext()
	defer cancel()
	result, err := s.daemon.Search(ctx, req)
	if err != nil {
		return err
	}
	*resp = result
	return nil
}

func (s *service) Settings(_ SettingsRequest, resp *SettingsResponse) error {
	ctx, cancel := s.callContext()
	defer cancel()
	current, err := s.daemon.Settings(ctx)
	if err != nil {
		return err
	}
	*resp = current
	return nil
}

func (s *service) SettingsUpdate(req settings.Update, resp *SettingsResponse) error {
	ctx, cancel := s.callContext()
	defer cancel()
	updated, err := s.daemon.UpdateSettings(ctx, req)
	if err != nil {
		return err
	}
	*resp = updated
	return nil
}

func (s *service) Engines(_ EnginesRequest, resp *EnginesResponse) error {
	ctx, cancel := s.callContext()
	defer cancel()
	names, err := s.daemon.EngineNames(ctx)
	if err != nil {
		return err
	}
	resp.Engines = names
	return nil
}

func (s *service) EnginesReport(req EnginesReportRequest, _ *Ack) error {
	s.daemon.ReportEngines(req.Names)
	s.logger.Debug("engines reported", logging.Int("count", len(req.Names)))
	return nil
}

func (s *service) WatcherReport(req WatcherReportRequest, _ *Ack) error {
	if req.HostID == "" {
		return errors.New("watcher report requires host id")
	}
	s.daemon.ReportWatcher(req.HostID, req.Stats)
	return nil
}

func (s *service) SearchClaim(req SearchClaimRequest, resp *SearchClaimResponse) error {
	ctx, cancel := s.callContext()
	defer cancel()
	search, found, err := s.daemon.ClaimBrowserSearch(ctx)
	if err != nil {
		return err
	}
	resp.Found = found
	resp.Search = search
	if found {
		s.logger.Debug("browser search claimed",
			logging.String("host_id", req.HostID),
			logging.Engine(search.Engine))
	}
	return nil
}

func (s *service) SearchComplete(req SearchCompleteRequest, _ *Ack) error {
	if !s.daemon.CompleteBrowserSearch(req.Ticket, req.Error) {
		return errors.New("unknown or expired search ticket")
	}
	return nil
}

func (s *service) Export(_ ExportRequest, resp *api.LegacyDump) error {
	ctx, cancel := s.callContext()
	defer cancel()
	dump, err := s.daemon.Export(ctx)
	if err != nil {
		return err
	}
	*resp = dump
	return nil
}

func (s *service) Import(req ImportRequest, resp *api.ImportResult) error {
	ctx, cancel := s.callContext()
	defer cancel()
	result, err := s.daemon.Import(ctx, req.Dump, req.Replace)
	if err != nil {
		return err
	}
	*resp = result
	return nil
}

func (s *service) DatabaseHealth(_ DatabaseHealthRequest, resp *DatabaseHealthResponse) error {
	ctx, cancel := s.callContext()
	defer cancel()
	health, err := s.daemon.DatabaseHealth(ctx)
	if err != nil {
		return err
	}
	*resp = health
	return nil
}
