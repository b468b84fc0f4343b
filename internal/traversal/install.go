package traversal

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/depsync/internal/history"
	"git.home.luguber.info/inful/depsync/internal/logfields"
	"git.home.luguber.info/inful/depsync/internal/marker"
	"git.home.luguber.info/inful/depsync/internal/metrics"
	"git.home.luguber.info/inful/depsync/internal/observability"
	"git.home.luguber.info/inful/depsync/internal/requirements"
)

const reasonForced = "forced"

// snapshotInstalled lists the installed packages once, before anything is
// synchronized; every manifest of the run is checked against this listing.
func (o *Orchestrator) snapshotInstalled(ctx context.Context, st *run) {
	st.installed = requirements.InstalledIndex{}
	if o.opts.SkipInstall || o.installer == nil {
		return
	}
	idx, err := o.installer.Installed(ctx)
	if err != nil {
		o.log(ctx, slog.LevelWarn, "Installed package inventory unavailable, assuming empty",
			logfields.Installer(o.installer.Name()), logfields.Error(err))
		return
	}
	st.installed = idx
}

// install decides, per collected requirement file, whether to run the installer.
// Install failures are recorded in the report and never returned.
func (o *Orchestrator) install(ctx context.Context, st *run) error {
	if o.opts.SkipInstall || o.installer == nil {
		o.log(ctx, slog.LevelInfo, "Install phase skipped", slog.Int("requirements", len(st.report.Requirements)))
		return nil
	}
	ctx, phase := observability.StartPhase(ctx, "install")

	m := marker.New(o.opts.CheckoutRoot, o.opts.Staleness)
	if o.opts.Now != nil {
		m.Now = o.opts.Now
	}
	if o.opts.DryRun {
		st.report.Forced, _ = m.Due()
	} else {
		st.report.Forced = m.Expired()
	}

	for _, path := range st.report.Requirements {
		if err := ctx.Err(); err != nil {
			phase.End(err)
			return err
		}
		st.report.Installs = append(st.report.Installs, o.installOne(ctx, path, st.installed, st.report.Forced))
	}
	phase.End(nil, slog.Int("manifests", len(st.report.Requirements)))
	return nil
}

func (o *Orchestrator) installOne(ctx context.Context, path string, idx requirements.InstalledIndex, forced bool) InstallOutcome {
	out := InstallOutcome{Manifest: path}
	m, err := requirements.ParseFile(path)
	if err != nil {
		o.log(ctx, slog.LevelWarn, "Requirement file partially read", logfields.Manifest(path), logfields.Error(err))
	}
	need, reason := requirements.NeedsInstall(m, idx)
	if forced {
		need, reason = true, reasonForced
	}
	payload := history.InstallPayload{Manifest: path, Installer: o.installer.Name(), Reason: reason}

	if !need {
		o.log(ctx, slog.LevelInfo, "Requirements already satisfied", logfields.Manifest(path))
		o.recorder.IncInstallResult(metrics.InstallSkipped)
		o.record(ctx, history.TypeRequirementsSkipped, "", payload)
		return out
	}
	out.Reason = reason
	if o.opts.DryRun {
		o.log(ctx, slog.LevelInfo, "Would install requirements", logfields.Manifest(path), logfields.Reason(reason))
		return out
	}

	o.log(ctx, slog.LevelInfo, "Installing requirements",
		logfields.Manifest(path), logfields.Reason(reason), logfields.Installer(o.installer.Name()))
	if err := o.installer.Install(ctx, path); err != nil {
		out.Err = err
		payload.Error = err.Error()
		o.log(ctx, slog.LevelError, "Requirement install failed", logfields.Manifest(path), logfields.Error(err))
		o.recorder.IncInstallResult(metrics.InstallFailed)
		o.record(ctx, history.TypeRequirementsFailed, "", payload)
		return out
	}
	out.Installed = true
	o.recorder.IncInstallResult(metrics.InstallInstalled)
	o.record(ctx, history.TypeRequirementsInstalled, "", payload)
	return out
}
