package iftree

import (
	"net/netip"
	"testing"
)

func TestAddVif_RequiresParentInterface(t *testing.T) {
	tr := New()
	if v := tr.AddVif("eth0", "eth0"); v != nil {
		t.Fatal("expected AddVif to fail without a parent interface")
	}
	tr.AddIf("eth0", 1)
	if v := tr.AddVif("eth0", "eth0"); v == nil {
		t.Fatal("expected AddVif to succeed once the parent interface exists")
	}
}

func TestAddAddr_NewAddressIsCreated(t *testing.T) {
	tr := New()
	tr.AddIf("eth0", 1)
	tr.AddVif("eth0", "eth0")

	addr := V4Addr{Addr: netip.MustParseAddr("10.0.0.1"), PrefixLen: 24, Enabled: true}
	if ok := tr.AddAddr("eth0", "eth0", addr); !ok {
		t.Fatal("expected AddAddr to succeed")
	}
	v := tr.GetVif("eth0", "eth0")
	got := v.V4Addrs["10.0.0.1"]
	if got.State != Created {
		t.Fatalf("expected new address state Created, got %s", got.State)
	}
}

func TestAddAddr_UnchangedReMarksNoChange(t *testing.T) {
	tr := New()
	tr.AddIf("eth0", 1)
	tr.AddVif("eth0", "eth0")
	addr := V4Addr{Addr: netip.MustParseAddr("10.0.0.1"), PrefixLen: 24, Enabled: true}
	tr.AddAddr("eth0", "eth0", addr)
	tr.FinalizeState()

	tr.AddAddr("eth0", "eth0", addr)
	v := tr.GetVif("eth0", "eth0")
	if v.V4Addrs["10.0.0.1"].State != NoChange {
		t.Fatalf("expected re-adding an identical address to stay NoChange, got %s", v.V4Addrs["10.0.0.1"].State)
	}
}

func TestAddAddr_ChangedPrefixLenMarksChanged(t *testing.T) {
	tr := New()
	tr.AddIf("eth0", 1)
	tr.AddVif("eth0", "eth0")
	addr := V4Addr{Addr: netip.MustParseAddr("10.0.0.1"), PrefixLen: 24, Enabled: true}
	tr.AddAddr("eth0", "eth0", addr)
	tr.FinalizeState()

	addr.PrefixLen = 25
	tr.AddAddr("eth0", "eth0", addr)
	v := tr.GetVif("eth0", "eth0")
	if v.V4Addrs["10.0.0.1"].State != Changed {
		t.Fatalf("expected changed prefix length to mark Changed, got %s", v.V4Addrs["10.0.0.1"].State)
	}
}

func TestRemoveIf_CascadesToVifsAndAddrs(t *testing.T) {
	tr := New()
	tr.AddIf("eth0", 1)
	tr.AddVif("eth0", "eth0")
	tr.AddAddr("eth0", "eth0", V4Addr{Addr: netip.MustParseAddr("10.0.0.1"), PrefixLen: 24})
	tr.FinalizeState()

	tr.RemoveIf("eth0")
	ifc := tr.GetIf("eth0")
	if ifc.State != Deleted {
		t.Fatal("expected interface to be marked Deleted")
	}
	v := ifc.Vifs["eth0"]
	if v.State != Deleted {
		t.Fatal("expected cascading delete to mark vif Deleted")
	}
	if v.V4Addrs["10.0.0.1"].State != Deleted {
		t.Fatal("expected cascading delete to mark address Deleted")
	}
}

func TestFinalizeState_DropsDeletedNodes(t *testing.T) {
	tr := New()
	tr.AddIf("eth0", 1)
	tr.AddVif("eth0", "eth0")
	tr.FinalizeState()

	tr.RemoveIf("eth0")
	tr.FinalizeState()

	if tr.GetIf("eth0") != nil {
		t.Fatal("expected FinalizeState to drop the deleted interface from the tree")
	}
	if _, ok := tr.IfByIndex(1); ok {
		t.Fatal("expected FinalizeState to drop the ifindex mapping for a deleted interface")
	}
}

func TestSnapshot_IsIndependentCopy(t *testing.T) {
	tr := New()
	tr.AddIf("eth0", 1)
	tr.AddVif("eth0", "eth0")
	tr.AddAddr("eth0", "eth0", V4Addr{Addr: netip.MustParseAddr("10.0.0.1"), PrefixLen: 24})

	snap := tr.Snapshot()
	tr.AddAddr("eth0", "eth0", V4Addr{Addr: netip.MustParseAddr("10.0.0.2"), PrefixLen: 24})

	snapVif := snap.GetVif("eth0", "eth0")
	if _, ok := snapVif.V4Addrs["10.0.0.2"]; ok {
		t.Fatal("expected snapshot to be unaffected by mutations made after it was taken")
	}
}

type recordingSink struct {
	ifUpdates   []string
	vifUpdates  []string
	addrUpdates []string
	completed   bool
}

func (s *recordingSink) InterfaceUpdate(ifname string, ifc *Interface) { s.ifUpdates = append(s.ifUpdates, ifname) }
func (s *recordingSink) VifUpdate(ifname, vifname string, v *Vif)      { s.vifUpdates = append(s.vifUpdates, vifname) }
func (s *recordingSink) VifAddrUpdate(ifname, vifname, addr string, a any) {
	s.addrUpdates = append(s.addrUpdates, addr)
}
func (s *recordingSink) UpdatesCompleted() { s.completed = true }

func TestReportUpdates_OnlyReportsChangedNodes(t *testing.T) {
	tr := New()
	tr.AddIf("eth0", 1)
	tr.AddVif("eth0", "eth0")
	tr.AddAddr("eth0", "eth0", V4Addr{Addr: netip.MustParseAddr("10.0.0.1"), PrefixLen: 24})
	tr.FinalizeState()

	sink := &recordingSink{}
	tr.ReportUpdates(sink)
	if len(sink.ifUpdates) != 0 || len(sink.vifUpdates) != 0 || len(sink.addrUpdates) != 0 {
		t.Fatalf("expected no updates reported after FinalizeState settles everything to NoChange, got %+v", sink)
	}
	if !sink.completed {
		t.Fatal("expected UpdatesCompleted to always fire")
	}

	tr.AddAddr("eth0", "eth0", V4Addr{Addr: netip.MustParseAddr("10.0.0.2"), PrefixLen: 24})
	sink2 := &recordingSink{}
	tr.ReportUpdates(sink2)
	if len(sink2.addrUpdates) != 1 || sink2.addrUpdates[0] != "10.0.0.2" {
		t.Fatalf("expected exactly the new address reported, got %+v", sink2.addrUpdates)
	}
}
