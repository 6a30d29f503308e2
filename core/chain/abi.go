// Package chain 提供ERC-721铸造合约的链上交互层
//
// 合约已预先部署，本包只做只读消费：读取铸造费用与历史铸造标记、
// 发起payable铸造调用、等待回执并从事件日志中解码新代币ID
package chain

// Retro721ABI 铸造合约ABI
//
// 合约侧为OpenZeppelin ERC-721扩展：payable mint(uri)并发出专用
// Minted事件；标准Transfer事件作为代币ID解码的回退来源
const Retro721ABI = `[
	{
		"type": "function",
		"name": "mint",
		"stateMutability": "payable",
		"inputs": [
			{"name": "uri", "type": "string"}
		],
		"outputs": [
			{"name": "tokenId", "type": "uint256"}
		]
	},
	{
		"type": "function",
		"name": "mintFee",
		"stateMutability": "view",
		"inputs": [],
		"outputs": [
			{"name": "", "type": "uint256"}
		]
	},
	{
		"type": "function",
		"name": "hasMinted",
		"stateMutability": "view",
		"inputs": [
			{"name": "owner", "type": "address"}
		],
		"outputs": [
			{"name": "", "type": "bool"}
		]
	},
	{
		"type": "event",
		"name": "Minted",
		"anonymous": false,
		"inputs": [
			{"name": "owner",   "type": "address", "indexed": true},
			{"name": "tokenId", "type": "uint256", "indexed": true},
			{"name": "uri",     "type": "string",  "indexed": false}
		]
	},
	{
		"type": "event",
		"name": "Transfer",
		"anonymous": false,
		"inputs": [
			{"name": "from",    "type": "address", "indexed": true},
			{"name": "to",      "type": "address", "indexed": true},
			{"name": "tokenId", "type": "uint256", "indexed": true}
		]
	}
]`
