// Package api provides the dbg module that extensions require.
//
//	local dbg = require("dbg")
//
//	local u = dbg.unwinder("jit", function(self, pf)
//		if pf:pc() < 0x7f0000000000 then return nil end
//		local info = pf:create_unwind_info({sp = pf:read_register("rsp"), pc = pf:pc()})
//		info:add_saved_register("rip", pf:read_register("r12"))
//		return info
//	end)
//	dbg.register_unwinder(nil, u, false)
//
// The module is assembled from smaller modules (unwinders, parameters,
// commands, printers, program spaces, output), each of which installs its
// functions into the shared table. Registrations made through the module are
// tracked on the extension's handle so a reload can undo them.
//
// Addresses are accepted as Lua numbers or numeric strings ("0x7fff0000");
// strings keep 64-bit values exact.
package api
