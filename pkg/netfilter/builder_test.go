package netfilter_test

import (
	"reflect"
	"strings"
	"testing"

	"nozomi-tproxy/pkg/netfilter"
)

func TestRuleBuilder_CgroupRedirect(t *testing.T) {
	rule, err := netfilter.NewRule().
		Table(netfilter.TableNat).
		Chain("nozomi_tproxy_out_42").
		Protocol(netfilter.ProtocolUDP).
		DstPort("53").
		Cgroup(1081).
		Target(netfilter.TargetRedirect).
		ToPortNumber(1081).
		Build()

	if err != nil {
		t.Fatalf("failed to build rule: %v", err)
	}

	expected := "table=nat chain=nozomi_tproxy_out_42 proto=udp dport=53 cgroup=1081 target=REDIRECT toport=1081"
	if got := rule.String(); got != expected {
		t.Errorf("rule.String() = %q, want %q", got, expected)
	}

	wantSpec := []string{"-p", "udp", "--dport", "53", "-m", "cgroup", "--cgroup", "1081", "-j", "REDIRECT", "--to-ports", "1081"}
	if got := rule.Spec(); !reflect.DeepEqual(got, wantSpec) {
		t.Errorf("rule.Spec() = %v, want %v", got, wantSpec)
	}
}

func TestRuleBuilder_TProxy(t *testing.T) {
	rule := netfilter.NewRule().
		Table(netfilter.TableMangle).
		Chain("nozomi_tproxy_pre_42").
		Protocol(netfilter.ProtocolTCP).
		Mark(42).
		TProxy("127.0.0.1", 1081).
		MustBuild()

	want := []string{"-p", "tcp", "-m", "mark", "--mark", "42", "-j", "TPROXY", "--on-ip", "127.0.0.1", "--on-port", "1081"}
	if got := rule.Spec(); !reflect.DeepEqual(got, want) {
		t.Errorf("rule.Spec() = %v, want %v", got, want)
	}
}

func TestRuleBuilder_SetMark(t *testing.T) {
	rule := netfilter.NewRule().
		Table(netfilter.TableMangle).
		Chain("nozomi_tproxy_out_42").
		Protocol(netfilter.ProtocolUDP).
		Cgroup(1081).
		SetMark(42).
		MustBuild()

	want := []string{"-p", "udp", "-m", "cgroup", "--cgroup", "1081", "-j", "MARK", "--set-mark", "42"}
	if got := rule.Spec(); !reflect.DeepEqual(got, want) {
		t.Errorf("rule.Spec() = %v, want %v", got, want)
	}
}

func TestRuleBuilder_JumpTo(t *testing.T) {
	rule := netfilter.NewRule().
		Table(netfilter.TableNat).
		Chain(netfilter.ChainOutput).
		JumpTo("nozomi_tproxy_out_42").
		MustBuild()

	want := []string{"-t", "nat", "-A", "OUTPUT", "-j", "nozomi_tproxy_out_42"}
	if got := rule.Args(); !reflect.DeepEqual(got, want) {
		t.Errorf("rule.Args() = %v, want %v", got, want)
	}
}

func TestRuleMustBuild_Panics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected MustBuild to panic on invalid rule, but it didn't")
		}
	}()

	_ = netfilter.NewRule().MustBuild()
}

func TestRuleBuilder_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		builder *netfilter.RuleBuilder
		wantErr string
	}{
		{
			name: "tproxy outside mangle",
			builder: netfilter.NewRule().
				Table(netfilter.TableNat).
				Chain(netfilter.ChainPrerouting).
				TProxy("127.0.0.1", 1081),
			wantErr: "only valid in the mangle table",
		},
		{
			name: "tproxy bad address",
			builder: netfilter.NewRule().
				Table(netfilter.TableMangle).
				Chain(netfilter.ChainPrerouting).
				TProxy("localhost", 1081),
			wantErr: "invalid TPROXY address",
		},
		{
			name: "mark without value",
			builder: netfilter.NewRule().
				Table(netfilter.TableMangle).
				Chain(netfilter.ChainOutput).
				SetMark(0),
			wantErr: "non-zero --set-mark",
		},
		{
			name: "redirect without port",
			builder: netfilter.NewRule().
				Table(netfilter.TableNat).
				Chain(netfilter.ChainOutput).
				Target(netfilter.TargetRedirect),
			wantErr: "requires --to-ports",
		},
		{
			name: "chain name too long",
			builder: netfilter.NewRule().
				Table(netfilter.TableNat).
				Chain("a_chain_name_that_is_far_too_long_for_iptables").
				Target(netfilter.TargetAccept),
			wantErr: "exceeds",
		},
		{
			name: "jump target with spaces",
			builder: netfilter.NewRule().
				Table(netfilter.TableNat).
				Chain(netfilter.ChainOutput).
				JumpTo("bad chain"),
			wantErr: "invalid jump target",
		},
		{
			name: "dport without protocol",
			builder: netfilter.NewRule().
				Table(netfilter.TableNat).
				Chain(netfilter.ChainOutput).
				DstPort("53").
				Target(netfilter.TargetAccept),
			wantErr: "require protocol",
		},
		{
			name: "invalid destination CIDR",
			builder: netfilter.NewRule().
				Table(netfilter.TableNat).
				Chain(netfilter.ChainOutput).
				Destination("invalid-cidr").
				Target(netfilter.TargetRedirect).
				ToPort("9999"),
			wantErr: "invalid destination CIDR",
		},
		{
			name: "redirect port out of range",
			builder: netfilter.NewRule().
				Table(netfilter.TableNat).
				Chain(netfilter.ChainOutput).
				Target(netfilter.TargetRedirect).
				ToPort("70000"),
			wantErr: "invalid redirect port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.builder.Build()
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error message = %q, want to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}
