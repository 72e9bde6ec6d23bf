/*
Package converter implements the holder-initiated conversion of legacy
tokens into a factory denomination.

A holder transfers legacy tokens to the converter. The converter burns them
in the legacy ledger and delivers the same amount of the configured
"factory/..." denomination to the holder, either by minting it through the
issuance authority ("mint" mode, the converter must be a whitelisted minter)
or by sending it from the converter's own pre-funded balance ("balance"
mode). Any other token sent to the converter is rejected.

Conversion works only while the legacy ledger accepts transfers, that is
before its paginated migration is started. Burnt tokens leave the legacy
supply, so they are never migrated again.

# Contract notifications

	Converted:
	  - name: holder
	    type: Hash160
	  - name: amount
	    type: Integer
	  - name: denom
	    type: String

# Contract storage scheme

	| Key        | Value                           |
	|------------|---------------------------------|
	| "settings" | serialized conversion route     |
*/
package converter
