package render

// The HW.* template family: SystemVerilog sources evaluated through the
// bounded substitution language in lang.go. Each constant here is one
// template family member keyed by the name used in the build plan.
// Every donor-identity-bearing module is generated from scratch into the
// staging tree so every byte in the output is accounted for by the render
// context, rather than patched into a prebuilt vendor source file.

const tmplDeviceConfig = `// Generated by {{header.generator_version}} for {{header.board_name}}
// Source donor: {{header.source_bdf}} identity {{header.donor_identity_hash}}{{#if header.has_friendly_name}} ({{header.donor_friendly_name}}){{/if}}
module pcileech_device_config (
    output logic [15:0] cfg_vendor_id,
    output logic [15:0] cfg_device_id,
    output logic [15:0] cfg_subsys_vendor_id,
    output logic [15:0] cfg_subsys_device_id,
    output logic [7:0]  cfg_revision_id,
    output logic [23:0] cfg_class_code,
    output logic [5:0]  cfg_num_dma_sources,
    output logic [31:0] cfg_writemask [0:1023]
);

    assign cfg_vendor_id        = 16'h{{device.vendor_id}};
    assign cfg_device_id        = 16'h{{device.device_id}};
    assign cfg_subsys_vendor_id = 16'h{{device.subsystem_vendor_id}};
    assign cfg_subsys_device_id = 16'h{{device.subsystem_device_id}};
    assign cfg_revision_id      = 8'h{{device.revision_id}};
    assign cfg_class_code       = 24'h{{device.class_code}};
    assign cfg_num_dma_sources  = 6'd{{active_device_config.num_sources}};

{{#range bars 0 5 as i}}
    // BAR[i]: present={{bars[i].present}} size={{bars[i].size}} 64bit={{bars[i].is_64bit}} prefetchable={{bars[i].is_prefetchable}}
{{/range}}

    // Per-DWORD host-writable mask, derived per capability (PM/MSI/MSI-X/
    // PCIe/AER/LTR) so a host write to a read-only or RW1C donor register
    // never reaches the shadow config space.
{{#range writemask 0 1023 as i}}
    assign cfg_writemask[i] = 32'h{{writemask[i].value}};
{{/range}}

endmodule
`

const tmplMsixRegs = `// MSI-X capability register block for {{header.board_name}}
// Generated by {{header.generator_version}}, donor identity {{header.donor_identity_hash}}
module pcileech_msix_regs (
    output logic        msix_present,
    output logic [10:0] msix_table_size_minus_one,
    output logic [2:0]  msix_table_bir,
    output logic [28:0] msix_table_offset,
    output logic [2:0]  msix_pba_bir,
    output logic [28:0] msix_pba_offset
);

    assign msix_present               = {{#if msix.present}}1'b1{{#else}}1'b0{{/if}};
    assign msix_table_size_minus_one  = 11'd{{msix.table_size_minus_one}};
    assign msix_table_bir             = 3'd{{msix.table_bar}};
    assign msix_table_offset          = 29'h{{msix.table_offset|hex:8}};
    assign msix_pba_bir               = 3'd{{msix.pba_bar}};
    assign msix_pba_offset            = 29'h{{msix.pba_offset|hex:8}};

endmodule
`

const tmplMsixImpl = `// MSI-X table/PBA storage for {{header.board_name}}: {{msix.num_vectors}} vector(s)
// Generated by {{header.generator_version}}, donor identity {{header.donor_identity_hash}}
module pcileech_msix_impl #(
    parameter NUM_VECTORS = {{msix.num_vectors}}
)(
    input  logic         clk,
    input  logic [10:0]  table_addr,
    output logic [127:0] table_rdata,
    input  logic [10:0]  pba_addr,
    output logic [31:0]  pba_rdata
);

    logic [127:0] msix_table [0:NUM_VECTORS-1];
    logic [31:0]  msix_pba   [0:(NUM_VECTORS+31)/32-1];

    initial begin
        for (int i = 0; i < NUM_VECTORS; i++) msix_table[i] = 128'h0;
        for (int i = 0; i < (NUM_VECTORS+31)/32; i++) msix_pba[i] = 32'h0;
    end

    always_ff @(posedge clk) begin
        table_rdata <= msix_table[table_addr];
        pba_rdata   <= msix_pba[pba_addr];
    end

endmodule
`

const tmplTopWrapper = `// Top-level wrapper for {{board.name}} ({{board.fpga_part}}, {{pcie.ip_family}})
// Generated by {{header.generator_version}}, donor identity {{header.donor_identity_hash}}
module {{board.top_module}} (
    input  logic        sys_clk,
    input  logic        sys_rst_n,
    input  logic        pcie_rxp,
    input  logic        pcie_rxn,
    output logic        pcie_txp,
    output logic        pcie_txn,
    output logic [31:0] debug_status
);

    logic [15:0] cfg_vendor_id, cfg_device_id, cfg_subsys_vendor_id, cfg_subsys_device_id;
    logic [7:0]  cfg_revision_id;
    logic [23:0] cfg_class_code;
    logic [5:0]  cfg_num_dma_sources;
    logic [31:0] cfg_writemask [0:1023];

    pcileech_device_config u_device_config (
        .cfg_vendor_id        (cfg_vendor_id),
        .cfg_device_id        (cfg_device_id),
        .cfg_subsys_vendor_id (cfg_subsys_vendor_id),
        .cfg_subsys_device_id (cfg_subsys_device_id),
        .cfg_revision_id      (cfg_revision_id),
        .cfg_class_code       (cfg_class_code),
        .cfg_num_dma_sources  (cfg_num_dma_sources),
        .cfg_writemask        (cfg_writemask)
    );

    // Debug-status constant encodes vendor/device IDs off the same
    // cfg_vendor_id/cfg_device_id wires as the device-config module, so it
    // always carries the bytes that module asserts.
    assign debug_status = {cfg_vendor_id, cfg_device_id};

{{#if msix.present}}
    logic msix_present;
    logic [10:0] msix_table_size_minus_one;
    logic [2:0]  msix_table_bir, msix_pba_bir;
    logic [28:0] msix_table_offset, msix_pba_offset;

    pcileech_msix_regs u_msix_regs (
        .msix_present              (msix_present),
        .msix_table_size_minus_one (msix_table_size_minus_one),
        .msix_table_bir            (msix_table_bir),
        .msix_table_offset         (msix_table_offset),
        .msix_pba_bir              (msix_pba_bir),
        .msix_pba_offset           (msix_pba_offset)
    );

    logic [10:0]  msix_impl_table_addr, msix_impl_pba_addr;
    logic [127:0] msix_impl_table_rdata;
    logic [31:0]  msix_impl_pba_rdata;

    assign msix_impl_table_addr = '0;
    assign msix_impl_pba_addr   = '0;

    pcileech_msix_impl #(
        .NUM_VECTORS({{msix.num_vectors}})
    ) u_msix_impl (
        .clk         (sys_clk),
        .table_addr  (msix_impl_table_addr),
        .table_rdata (msix_impl_table_rdata),
        .pba_addr    (msix_impl_pba_addr),
        .pba_rdata   (msix_impl_pba_rdata)
    );
{{/if}}

    // PCIe lanes: {{board.pcie_lanes}}

endmodule
`

const tmplAdvancedPowerMgmt = `// Power management advisory block for {{header.board_name}}
// Generated by {{header.generator_version}}, donor identity {{header.donor_identity_hash}}
module pcileech_power_mgmt (
    output logic [1:0] pm_state,
    output logic       pm_d1_supported,
    output logic       pm_d2_supported
);

    assign pm_state        = 2'b00; // D0
    assign pm_d1_supported = 1'b0;
    assign pm_d2_supported = 1'b0;

endmodule
`

const tmplAdvancedError = `// AER advisory shadow block for {{header.board_name}}
// Generated by {{header.generator_version}}, donor identity {{header.donor_identity_hash}}
module pcileech_error_shadow (
    output logic [31:0] uncorrectable_error_status,
    output logic [31:0] correctable_error_status
);

    assign uncorrectable_error_status = 32'h0;
    assign correctable_error_status   = 32'h0;

endmodule
`

const tmplAdvancedPerfCounters = `// Advisory performance counters for {{header.board_name}}
// Generated by {{header.generator_version}}, donor identity {{header.donor_identity_hash}}
module pcileech_perf_counters (
    input  logic clk,
    input  logic rst_n,
    output logic [31:0] tlp_count
);

    always_ff @(posedge clk or negedge rst_n) begin
        if (!rst_n) tlp_count <= 32'h0;
        else        tlp_count <= tlp_count + 32'h1;
    end

endmodule
`

const tmplAdvancedClockXing = `// Clock domain crossing helper for {{header.board_name}} ({{active_device_config.enable_variance}} variance model active)
// Generated by {{header.generator_version}}, donor identity {{header.donor_identity_hash}}
module pcileech_clock_xing (
    input  logic clk_a,
    input  logic clk_b,
    input  logic data_in,
    output logic data_out
);

    (* ASYNC_REG = "TRUE" *) logic stage1, stage2;

    always_ff @(posedge clk_b) begin
        stage1 <= data_in;
        stage2 <= stage1;
    end

    assign data_out = stage2;

endmodule
`

// hwTemplates maps each HW.* family member to its output basename under
// <out>/generated/, its template source, and the render-context boolean (if
// any) that gates whether it is emitted at all. A gateKey of "" means the
// member is unconditional (device_config and top_wrapper are always part of
// the output tree); everything else only renders when the donor's own
// capabilities or the active build options turned that feature on, so a
// feature-off donor never gets a module declaring signals nothing drives.
var hwTemplates = map[string]struct {
	outputName string
	source     string
	gateKey    string
}{
	"HW.device_config":          {"pcileech_device_config.sv", tmplDeviceConfig, ""},
	"HW.msix_regs":              {"pcileech_msix_regs.sv", tmplMsixRegs, "msix.present"},
	"HW.msix_impl":              {"pcileech_msix_impl.sv", tmplMsixImpl, "msix.present"},
	"HW.top_wrapper":            {"pcileech_top.sv", tmplTopWrapper, ""},
	"HW.advanced.power_mgmt":    {"pcileech_power_mgmt.sv", tmplAdvancedPowerMgmt, "advanced.power_mgmt.enabled"},
	"HW.advanced.error":         {"pcileech_error_shadow.sv", tmplAdvancedError, "advanced.error.enabled"},
	"HW.advanced.perf_counters": {"pcileech_perf_counters.sv", tmplAdvancedPerfCounters, "advanced.perf_counters.enabled"},
	"HW.advanced.clock_xing":    {"pcileech_clock_xing.sv", tmplAdvancedClockXing, "advanced.clock_xing.enabled"},
}
