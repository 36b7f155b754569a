package proxy

import (
	"context"

	"github.com/kangtastic/peapod/internal/classifier"
	"github.com/kangtastic/peapod/internal/frame"
	"github.com/kangtastic/peapod/internal/ifacetable"
	"github.com/kangtastic/peapod/internal/logging"
	"github.com/kangtastic/peapod/internal/policy"
	"github.com/kangtastic/peapod/internal/rawsock"
	"github.com/kangtastic/peapod/internal/script"
)

// handlePacket implements the single-packet orchestration of spec.md
// §4.6 steps 2-6, given that step 1 (the readiness check) has already
// passed for iface.
func (l *Loop) handlePacket(iface *ifacetable.Interface) error {
	var view frame.PacketView
	outcome, err := rawsock.Recv(iface, l.buf, &view)
	if err != nil {
		return wrap(KindRuntimeTransient, "receive, interface %q: %w", iface.Name, err)
	}
	switch outcome {
	case frame.RecvRunt:
		logging.L().Warn().Str("iface", iface.Name).Msg("dropping runt frame")
		l.Metrics.FrameDropped(iface.Name, "runt")
		return nil
	case frame.RecvGiant:
		logging.L().Warn().Str("iface", iface.Name).Msg("dropping giant frame")
		l.Metrics.FrameDropped(iface.Name, "giant")
		return nil
	}

	result := classifier.Classify(l.buf.PDU())
	view.EAPOLType = result.Type
	view.HasEAP = result.HasEAP
	view.EAPCode = result.Code

	if ev := logging.L().DebugLow(); ev.Enabled() {
		ev.Str("iface", iface.Name).Str("dump", frame.Dump(l.buf, &view, true)).Msg("received frame")
	}

	l.Metrics.FrameReceived(iface.Name)

	iface.RecvCounter++
	if iface.RecvCounter == 1 {
		l.learnMAC(iface, view.SourceMAC)
	}

	if iface.Ingress != nil && iface.Ingress.Action != nil {
		if path, ok := policy.SelectAction(iface.Ingress.Action, view.EAPOLType, view.HasEAP, view.EAPCode); ok {
			l.runAction(path, iface, iface, &view, false)
		}
	}

	if iface.Ingress != nil && policy.Drops(iface.Ingress.Filter, view.EAPOLType, view.HasEAP, view.EAPCode) {
		logging.L().Info().Str("iface", iface.Name).Msg("filtered frame entering")
		l.Metrics.FrameDropped(iface.Name, "filtered-ingress")
		return nil
	}

	for _, egress := range l.Table.Others(iface) {
		egressView := view.Copy()
		egressView.CurrentInterface = egress

		var directive *ifacetable.TCIDirective
		var eFilter *ifacetable.FilterMask
		var eAction *ifacetable.ActionTable
		if egress.Egress != nil {
			directive = egress.Egress.TCI
			eFilter = egress.Egress.Filter
			eAction = egress.Egress.Action
		}

		policy.RewriteTCI(&egressView, directive)

		if policy.Drops(eFilter, egressView.EAPOLType, egressView.HasEAP, egressView.EAPCode) {
			logging.L().Info().Str("iface_orig", iface.Name).Str("iface", egress.Name).Msg("filtered frame leaving")
			l.Metrics.FrameDropped(egress.Name, "filtered-egress")
			continue
		}

		if eAction != nil {
			if path, ok := policy.SelectAction(eAction, egressView.EAPOLType, egressView.HasEAP, egressView.EAPCode); ok {
				l.runAction(path, iface, egress, &egressView, true)
			}
		}

		if ev := logging.L().DebugLow(); ev.Enabled() {
			ev.Str("iface", egress.Name).Str("dump", frame.Dump(l.buf, &egressView, false)).Msg("sending frame")
		}

		data := l.buf.FrameStart(&egressView, false)
		if err := rawsock.Send(egress, data); err != nil {
			return wrap(KindRuntimeTransient, "send, interface %q: %w", egress.Name, err)
		}
		egress.SendCounter++
		l.Metrics.FrameSent(egress.Name)
	}

	return nil
}

// learnMAC implements the "one-shot MAC learning" rule of spec.md §4.6
// step 3: for every other interface whose LearnMACFrom equals ingress's
// index, clear the field and attempt to set that interface's MAC.
func (l *Loop) learnMAC(ingress *ifacetable.Interface, sourceMAC [frame.MACAddrLen]byte) {
	for _, other := range l.Table.All() {
		if other == ingress || other.LearnMACFrom != ingress.Index {
			continue
		}
		other.LearnMACFrom = -1 // oneshot

		mac := make([]byte, frame.MACAddrLen)
		copy(mac, sourceMAC[:])

		if err := rawsock.SetMAC(other, mac); err != nil {
			logging.L().Warn().Err(err).Str("iface", other.Name).Msg("won't try to set MAC again")
			continue
		}
		l.ignoreEPOLLERR = true
		logging.L().Notice().Str("iface", other.Name).Msg("set MAC, restarting")
	}
}

func (l *Loop) runAction(path string, ingress, current *ifacetable.Interface, v *frame.PacketView, egress bool) {
	frameCopy := func(useOriginal bool) []byte {
		raw := l.buf.FrameStart(v, useOriginal)
		out := make([]byte, len(raw))
		copy(out, raw)
		return out
	}

	p := script.Params{
		Timestamp:            v.Timestamp,
		View:                 v,
		OriginalFrame:        frameCopy(true),
		CurrentFrame:         frameCopy(false),
		IngressInterfaceName: ingress.Name,
		IngressInterfaceMTU:  ingress.MTU,
		CurrentInterfaceName: current.Name,
		CurrentInterfaceMTU:  current.MTU,
	}

	ev := logging.L().Notice()
	if l.Quiet {
		ev = logging.L().Info()
	}
	dir := "entering on"
	if egress {
		dir = "leaving on"
	}
	ev.Str("iface", current.Name).Str("script", path).Msgf("%s %s '%s'; executing '%s'",
		classifier.DescribeEAPOLType(v.EAPOLType), dir, current.Name, path)

	l.Metrics.ActionRun(current.Name)
	if err := script.Run(context.Background(), path, p); err != nil {
		logging.L().Warn().Err(err).Str("script", path).Msg("script did not exit cleanly")
	}
}
